package parsers

// Pagination holds the query params shared by the listing endpoints. Items
// are returned by itemId, starting at FromItem when set.
type Pagination struct {
	FromItem *uint   `form:"fromItem"`
	Order    *string `form:"order,default=ASC" binding:"omitempty,oneof=ASC DESC"`
	// Limit is capped by the HistoryDB
	Limit *uint `form:"limit,default=20" binding:"omitempty,min=1,max=500"`
}
