package main

import (
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"path"
	"sort"
	"strings"
	"time"

	ethCommon "github.com/ethereum/go-ethereum/common"
	"github.com/hermeznetwork/tracerr"
	"github.com/jmoiron/sqlx"
	"github.com/urfave/cli/v2"
	"github.com/vaultbridge/vaultbridge-node/common"
	"github.com/vaultbridge/vaultbridge-node/config"
	dbUtils "github.com/vaultbridge/vaultbridge-node/db"
	"github.com/vaultbridge/vaultbridge-node/db/historydb"
	"github.com/vaultbridge/vaultbridge-node/db/kvdb"
	"github.com/vaultbridge/vaultbridge-node/log"
	"github.com/vaultbridge/vaultbridge-node/node"
)

const (
	flagCfg     = "cfg"
	flagYes     = "yes"
	flagBatch   = "batch"
	nMigrations = "nMigrations"
	flagAccount = "account"
	flagPath    = "path"
)

var (
	// version represents the program based on the git tag
	version = "v0.1.0"
	// commit represents the program based on the git commit
	commit = "dev"
	// date represents the date of application was built
	date = ""
)

func cmdVersion(*cli.Context) error {
	fmt.Printf("Version = \"%v\"\n", version)
	fmt.Printf("Build = \"%v\"\n", commit)
	fmt.Printf("Date = \"%v\"\n", date)
	return nil
}

func confirm(c *cli.Context, question string) (bool, error) {
	if c.Bool(flagYes) {
		return true, nil
	}
	fmt.Printf("*WARNING* %s [y/N]: ", question)
	var input string
	if _, err := fmt.Scanln(&input); err != nil {
		return false, tracerr.Wrap(err)
	}
	input = strings.ToLower(input)
	return input == "y" || input == "yes", nil
}

// connectSQLDB connects to the configured SQL DB without running the
// migrations
func connectSQLDB(cfg *config.Node) (*sqlx.DB, error) {
	if cfg.SQLite.Path != "" {
		db, err := dbUtils.ConnectSQLiteDB(cfg.SQLite.Path)
		return db, tracerr.Wrap(err)
	}
	db, err := dbUtils.ConnectSQLDB(
		cfg.PostgreSQL.Port,
		cfg.PostgreSQL.Host,
		cfg.PostgreSQL.User,
		cfg.PostgreSQL.Password,
		cfg.PostgreSQL.Name,
	)
	return db, tracerr.Wrap(err)
}

func cmdWipeDBs(c *cli.Context) error {
	cfg, err := parseCli(c)
	if err != nil {
		return tracerr.Wrap(fmt.Errorf("error parsing flags and config: %w", err))
	}
	log.Init(cfg.Log.Level, cfg.Log.Out, cfg.Log.ErrorsFile)
	if ok, err := confirm(c, "Are you sure you want to delete the SQL DB and the StateDB?"); !ok {
		return tracerr.Wrap(err)
	}
	db, err := connectSQLDB(cfg)
	if err != nil {
		return tracerr.Wrap(err)
	}
	log.Info("Wiping SQL DB...")
	if err := dbUtils.MigrationsDown(db, 0); err != nil {
		return tracerr.Wrap(fmt.Errorf("dbUtils.MigrationsDown: %w", err))
	}

	log.Info("Wiping StateDB...")
	stateDB, err := kvdb.NewKVDB(cfg.StateDB.Path, cfg.StateDB.Keep)
	if err != nil {
		return tracerr.Wrap(fmt.Errorf("kvdb.NewKVDB: %w", err))
	}
	defer stateDB.Close()
	if err := stateDB.Reset(0); err != nil {
		return tracerr.Wrap(fmt.Errorf("stateDB.Reset: %w", err))
	}
	return nil
}

func cmdSQLMigrationDown(c *cli.Context) error {
	cfg, err := parseCli(c)
	if err != nil {
		return tracerr.Wrap(fmt.Errorf("error parsing flags and config: %w", err))
	}
	log.Init(cfg.Log.Level, cfg.Log.Out, cfg.Log.ErrorsFile)
	migrationsToRun := c.Uint(nMigrations)
	if migrationsToRun == 0 {
		return tracerr.New(nMigrations + " is set to 0, this is equivalent to use wipedbs command. " +
			"If this is your intention use the other command")
	}
	if ok, err := confirm(c, fmt.Sprintf("Are you sure you want to revert %d the SQL migrations?",
		migrationsToRun)); !ok {
		return tracerr.Wrap(err)
	}
	db, err := connectSQLDB(cfg)
	if err != nil {
		return tracerr.Wrap(err)
	}
	log.Infof("Reverting %d SQL migrations...", migrationsToRun)
	if err := dbUtils.MigrationsDown(db, migrationsToRun); err != nil {
		return tracerr.Wrap(fmt.Errorf("dbUtils.MigrationsDown: %w", err))
	}
	log.Info("SQL migrations down successfully")
	return nil
}

// cmdReset rolls the world state back to the checkpoint made when a batch
// was finalized, and discards the history recorded after it
func cmdReset(c *cli.Context) error {
	cfg, err := parseCli(c)
	if err != nil {
		return tracerr.Wrap(fmt.Errorf("error parsing flags and config: %w", err))
	}
	log.Init(cfg.Log.Level, cfg.Log.Out, cfg.Log.ErrorsFile)
	batchID := common.BatchID(c.Uint64(flagBatch))
	if ok, err := confirm(c, fmt.Sprintf("Are you sure you want to discard every operation "+
		"after the finalization of batch %d?", batchID)); !ok {
		return tracerr.Wrap(err)
	}

	stateDB, err := kvdb.NewKVDB(cfg.StateDB.Path, cfg.StateDB.Keep)
	if err != nil {
		return tracerr.Wrap(fmt.Errorf("kvdb.NewKVDB: %w", err))
	}
	defer stateDB.Close()
	log.Infof("Reset StateDB to batch %v...", batchID)
	if err := stateDB.ResetToBatch(batchID); err != nil {
		return tracerr.Wrap(fmt.Errorf("stateDB.ResetToBatch: %w", err))
	}
	commitTime, err := stateDB.GetCommitTime()
	if err != nil {
		return tracerr.Wrap(fmt.Errorf("stateDB.GetCommitTime: %w", err))
	}

	db, err := node.InitSQLDB(cfg)
	if err != nil {
		return tracerr.Wrap(fmt.Errorf("node.InitSQLDB: %w", err))
	}
	historyDB := historydb.NewHistoryDB(db, db, nil)
	log.Infow("Discarding history", "after", commitTime)
	if err := historyDB.Reset(commitTime); err != nil {
		return tracerr.Wrap(fmt.Errorf("historyDB.Reset: %w", err))
	}
	return nil
}

// restoreComponents opens the StateDB and returns the components holding
// the stored world state
func restoreComponents(cfg *config.Node) (*node.Components, *kvdb.KVDB, error) {
	stateDB, err := kvdb.NewKVDB(cfg.StateDB.Path, cfg.StateDB.Keep)
	if err != nil {
		return nil, nil, tracerr.Wrap(fmt.Errorf("kvdb.NewKVDB: %w", err))
	}
	components, err := node.NewComponents(cfg, node.NewOracle(&cfg.Oracle))
	if err != nil {
		stateDB.Close()
		return nil, nil, tracerr.Wrap(err)
	}
	if _, err := components.Restore(stateDB); err != nil {
		stateDB.Close()
		return nil, nil, tracerr.Wrap(err)
	}
	return components, stateDB, nil
}

func printBatch(prefix string, b *common.Batch) {
	if b == nil {
		fmt.Printf("%s = \"none\"\n", prefix)
		return
	}
	fmt.Printf("%s.BatchID = %d\n", prefix, b.BatchID)
	fmt.Printf("%s.RequestedAmount = \"%v\"\n", prefix, b.RequestedAmount)
	fmt.Printf("%s.BurnedAmount = \"%v\"\n", prefix, b.BurnedAmount)
	fmt.Printf("%s.CollectedAmount = \"%v\"\n", prefix, b.CollectedAmount)
}

func cmdStatus(c *cli.Context) error {
	cfg, err := parseCli(c)
	if err != nil {
		return tracerr.Wrap(fmt.Errorf("error parsing flags and config: %w", err))
	}
	log.Init(cfg.Log.Level, cfg.Log.Out, cfg.Log.ErrorsFile)
	components, stateDB, err := restoreComponents(cfg)
	if err != nil {
		return tracerr.Wrap(err)
	}
	defer stateDB.Close()
	commitTime, err := stateDB.GetCommitTime()
	if err != nil {
		return tracerr.Wrap(err)
	}

	status := components.Engine.Status()
	fmt.Printf("State = \"%v\"\n", status.State)
	fmt.Printf("Paused = %v\n", status.Params.Paused)
	fmt.Printf("Checkpoint = %d\n", stateDB.CurrentCheckpoint)
	fmt.Printf("CommitTime = \"%v\"\n", commitTime.Format(time.RFC3339))
	printBatch("ActiveBatch", &status.ActiveBatch)
	printBatch("WithdrawingBatch", status.WithdrawingBatch)
	fmt.Printf("FinalizedBatches = %d\n", status.FinalizedCount)
	fmt.Printf("RedemptionLiabilities = \"%v\"\n", components.Manager.Liabilities())
	fmt.Printf("RedemptionSurplus = \"%v\"\n", components.Manager.Surplus())
	if err := components.Manager.Reconcile(); err != nil {
		fmt.Printf("RedemptionReconcile = \"%v\"\n", err)
	} else {
		fmt.Printf("RedemptionReconcile = \"ok\"\n")
	}
	custody, lockedAt := components.Ledger.Custody()
	fmt.Printf("Custody = \"%v\"\n", custody)
	if !lockedAt.IsZero() {
		fmt.Printf("CustodyLockedAt = \"%v\"\n", lockedAt.Format(time.RFC3339))
	}
	return nil
}

func cmdGetAccountDetails(c *cli.Context) error {
	cfg, err := parseCli(c)
	if err != nil {
		return tracerr.Wrap(fmt.Errorf("error parsing flags and config: %w", err))
	}
	log.Init(cfg.Log.Level, cfg.Log.Out, cfg.Log.ErrorsFile)
	account := c.String(flagAccount)
	if !ethCommon.IsHexAddress(account) {
		return tracerr.Wrap(fmt.Errorf("invalid account %q", account))
	}
	addr := ethCommon.HexToAddress(account)
	components, stateDB, err := restoreComponents(cfg)
	if err != nil {
		return tracerr.Wrap(err)
	}
	defer stateDB.Close()

	balances := components.Ledger.BalancesOf(addr)
	fmt.Printf("Account = \"%v\"\n", addr.Hex())
	fmt.Printf("Allowlisted = %v\n", balances.Allowlisted)
	fmt.Printf("Asset = \"%v\"\n", balances.Asset)
	fmt.Printf("Synthetic = \"%v\"\n", balances.Synthetic)
	ids := make([]common.BatchID, 0, len(balances.Receipts))
	for id := range balances.Receipts {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	for _, id := range ids {
		fmt.Printf("Receipts.%d = \"%v\"\n", id, balances.Receipts[id])
	}
	return nil
}

// cmdMakeBackup copies the last StateDB checkpoint and dumps the PostgreSQL
// DB next to it
func cmdMakeBackup(c *cli.Context) error {
	cfg, err := parseCli(c)
	if err != nil {
		return tracerr.Wrap(fmt.Errorf("error parsing flags and config: %w", err))
	}
	log.Init(cfg.Log.Level, cfg.Log.Out, cfg.Log.ErrorsFile)
	today := time.Now().Format("20060102150405")
	backupPath := path.Join(c.String(flagPath), "backup-"+today)
	if err := os.MkdirAll(backupPath, os.ModePerm); err != nil {
		return tracerr.Wrap(err)
	}

	stateDB, err := kvdb.NewKVDB(cfg.StateDB.Path, cfg.StateDB.Keep)
	if err != nil {
		return tracerr.Wrap(fmt.Errorf("kvdb.NewKVDB: %w", err))
	}
	defer stateDB.Close()
	if stateDB.CurrentCheckpoint == 0 {
		log.Warn("StateDB has no checkpoint yet, skipping it")
	} else {
		log.Infof("Copying StateDB checkpoint %d...", stateDB.CurrentCheckpoint)
		if err := stateDB.MakeCheckpointFromTo(stateDB.CurrentCheckpoint,
			path.Join(backupPath, "statedb")); err != nil {
			return tracerr.Wrap(err)
		}
	}

	if cfg.SQLite.Path != "" {
		log.Warn("SQLite backups are not supported, copy the DB file while the node is stopped")
		return nil
	}
	log.Info("Dumping PostgreSQL DB...")
	outfile, err := os.Create(path.Join(backupPath, "vaultdb-dump.sql"))
	if err != nil {
		return tracerr.Wrap(err)
	}
	defer outfile.Close()                      //nolint:errcheck
	cmd := exec.Command("pg_dump", "--dbname", // #nosec G204
		fmt.Sprintf("postgresql://%s:%s@%s:%d/%s", cfg.PostgreSQL.User, cfg.PostgreSQL.Password,
			cfg.PostgreSQL.Host, cfg.PostgreSQL.Port, cfg.PostgreSQL.Name))
	cmd.Stdout = outfile
	if err := cmd.Run(); err != nil {
		return tracerr.Wrap(fmt.Errorf("pg_dump: %w", err))
	}
	log.Infof("Backup finished at %s", backupPath)
	return nil
}

func waitSigInt() {
	stopCh := make(chan interface{})

	// catch ^C to send the stop signal
	ossig := make(chan os.Signal, 1)
	signal.Notify(ossig, os.Interrupt)
	const forceStopCount = 3
	go func() {
		n := 0
		for sig := range ossig {
			if sig == os.Interrupt {
				log.Info("Received Interrupt Signal")
				stopCh <- nil
				n++
				if n == forceStopCount {
					log.Fatalf("Received %v Interrupt Signals", forceStopCount)
				}
			}
		}
	}()
	<-stopCh
}

func cmdRun(c *cli.Context) error {
	cfg, err := parseCli(c)
	if err != nil {
		return tracerr.Wrap(fmt.Errorf("error parsing flags and config: %w", err))
	}
	log.Init(cfg.Log.Level, cfg.Log.Out, cfg.Log.ErrorsFile)
	innerNode, err := node.NewNode(cfg, c.App.Version)
	if err != nil {
		return tracerr.Wrap(fmt.Errorf("error starting node: %w", err))
	}
	innerNode.Start()
	waitSigInt()
	innerNode.Stop()

	return nil
}

func parseCli(c *cli.Context) (*config.Node, error) {
	cfg, err := config.LoadNode(c.String(flagCfg))
	if err != nil {
		if err := cli.ShowAppHelp(c); err != nil {
			panic(err)
		}
		return nil, tracerr.Wrap(err)
	}
	return cfg, nil
}

func main() {
	app := cli.NewApp()
	app.Name = "vault-node"
	app.Version = version
	flags := []cli.Flag{
		&cli.StringFlag{
			Name:     flagCfg,
			Usage:    "Node configuration `FILE`",
			Required: true,
		},
	}
	yesFlag := &cli.BoolFlag{
		Name:     flagYes,
		Usage:    "automatic yes to the prompt",
		Required: false,
	}

	app.Commands = []*cli.Command{
		{
			Name:    "version",
			Aliases: []string{},
			Usage:   "Show the application version and build",
			Action:  cmdVersion,
		},
		{
			Name:    "wipedbs",
			Aliases: []string{},
			Usage: "Wipe the SQL DB (HistoryDB) and the StateDB, " +
				"leaving the DB in a clean state",
			Action: cmdWipeDBs,
			Flags:  append(flags, yesFlag),
		},
		{
			Name:    "migratesqldown",
			Aliases: []string{},
			Usage: "Revert migrations of the SQL DB (HistoryDB), " +
				"leaving the SQL schema as in previous versions",
			Action: cmdSQLMigrationDown,
			Flags: append(flags, yesFlag,
				&cli.UintFlag{
					Name:     nMigrations,
					Usage:    "amount of migrations to be reverted",
					Required: true,
				}),
		},
		{
			Name:    "run",
			Aliases: []string{},
			Usage:   "Run the vault-node",
			Action:  cmdRun,
			Flags:   flags,
		},
		{
			Name:    "reset",
			Aliases: []string{},
			Usage:   "Reset the world state and the history to the finalization of a batch",
			Action:  cmdReset,
			Flags: append(flags, yesFlag,
				&cli.Uint64Flag{
					Name:     flagBatch,
					Usage:    "id of the last finalized batch to keep",
					Required: true,
				}),
		},
		{
			Name:    "status",
			Aliases: []string{},
			Usage:   "Show the stored state of the settlement engine",
			Action:  cmdStatus,
			Flags:   flags,
		},
		{
			Name:    "accountInfo",
			Aliases: []string{},
			Usage:   "get the stored balances of the specified account",
			Action:  cmdGetAccountDetails,
			Flags: append(flags,
				&cli.StringFlag{
					Name:     flagAccount,
					Usage:    "account address in hex",
					Required: true,
				}),
		},
		{
			Name:    "backup",
			Aliases: []string{},
			Usage:   "Make the backup for postgres and statedb",
			Action:  cmdMakeBackup,
			Flags: append(flags,
				&cli.StringFlag{
					Name:     flagPath,
					Usage:    "path for saving backup",
					Required: true,
				}),
		},
	}

	err := app.Run(os.Args)
	if err != nil {
		fmt.Printf("\nError: %v\n", tracerr.Sprint(err))
		os.Exit(1)
	}
}
