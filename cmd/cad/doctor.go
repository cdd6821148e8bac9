package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"github.com/cadencehq/cadence/internal/config"
	"github.com/cadencehq/cadence/internal/db"
)

func newDoctorCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check configuration and database health",
		Long:  "Runs diagnostic checks on Cadence prerequisites: config, database, schema, users, actor, and notifier settings.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDoctor(cmd, configPath)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "cadence.yaml", "path to Cadence config file")
	return cmd
}

type checkResult struct {
	name   string
	status string // "PASS", "FAIL", "WARN"
	detail string
}

func runDoctor(cmd *cobra.Command, configPath string) error {
	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "Cadence Doctor")
	fmt.Fprintln(out, "==============")

	var results []checkResult

	// 1. Config
	cfg, cfgResult := checkConfig(configPath)
	results = append(results, cfgResult)

	// 2. Database
	var gormDB *gorm.DB
	if cfg != nil {
		gormDB, results = appendDatabaseChecks(results, cfg)
	} else {
		results = append(results, checkResult{"Database", "FAIL", "skipped (no config)"})
		results = append(results, checkResult{"Schema", "FAIL", "skipped (no config)"})
	}

	// 3. Users
	if gormDB != nil {
		results = append(results, checkUsers(gormDB))
	} else {
		results = append(results, checkResult{"Users", "FAIL", "skipped (no database)"})
	}

	// 4. Actor
	if cfg != nil {
		results = append(results, checkActor(cfg))
	}

	// 5. Notifier
	if cfg != nil {
		results = append(results, checkNotify(cfg))
	}

	// 6. GitHub import
	if cfg != nil {
		results = append(results, checkGitHub(cfg))
	}

	// Print results.
	passed, failed, warned := 0, 0, 0
	for _, r := range results {
		printCheckResult(out, r)
		switch r.status {
		case "PASS":
			passed++
		case "FAIL":
			failed++
		case "WARN":
			warned++
		}
	}

	fmt.Fprintf(out, "\n%d passed, %d failed, %d warning\n", passed, failed, warned)

	if failed > 0 {
		return fmt.Errorf("%d check(s) failed", failed)
	}
	return nil
}

func printCheckResult(out io.Writer, r checkResult) {
	fmt.Fprintf(out, "[%s] %s: %s\n", r.status, r.name, r.detail)
}

func checkConfig(path string) (*config.Config, checkResult) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, checkResult{"Config file", "FAIL", fmt.Sprintf("%s: %v", path, err)}
	}
	return cfg, checkResult{"Config file", "PASS", fmt.Sprintf("%s (driver: %s)", path, cfg.Database.Driver)}
}

func appendDatabaseChecks(results []checkResult, cfg *config.Config) (*gorm.DB, []checkResult) {
	gormDB, err := db.Open(cfg.Database)
	if err != nil {
		results = append(results, checkResult{"Database", "FAIL", err.Error()})
		results = append(results, checkResult{"Schema", "FAIL", "skipped (no database)"})
		return nil, results
	}

	sqlDB, err := gormDB.DB()
	if err != nil {
		results = append(results, checkResult{"Database", "FAIL", fmt.Sprintf("get sql.DB: %v", err)})
		results = append(results, checkResult{"Schema", "FAIL", "skipped (no database)"})
		return nil, results
	}
	if err := sqlDB.Ping(); err != nil {
		results = append(results, checkResult{"Database", "FAIL", fmt.Sprintf("ping failed: %v", err)})
		results = append(results, checkResult{"Schema", "FAIL", "skipped (no database)"})
		return nil, results
	}
	results = append(results, checkResult{"Database", "PASS", "reachable"})
	results = append(results, checkSchema(gormDB, cfg.Database.Driver))
	return gormDB, results
}

func checkSchema(gormDB *gorm.DB, driver string) checkResult {
	var tableNames []string
	query := "SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%'"
	if driver == "mysql" {
		query = "SHOW TABLES"
	}
	if err := gormDB.Raw(query).Scan(&tableNames).Error; err != nil {
		return checkResult{"Schema", "FAIL", fmt.Sprintf("list tables: %v", err)}
	}

	expected := len(db.AllModels())
	actual := len(tableNames)
	if actual >= expected {
		return checkResult{"Schema", "PASS", fmt.Sprintf("%d/%d tables migrated", actual, expected)}
	}
	return checkResult{"Schema", "WARN", fmt.Sprintf("%d/%d tables migrated; run cad db migrate", actual, expected)}
}

func checkUsers(gormDB *gorm.DB) checkResult {
	var count int64
	if err := gormDB.Table("users").Count(&count).Error; err != nil {
		return checkResult{"Users", "FAIL", fmt.Sprintf("count users: %v", err)}
	}
	if count == 0 {
		return checkResult{"Users", "WARN", "no users seeded; run cad user add"}
	}
	return checkResult{"Users", "PASS", fmt.Sprintf("%d seeded", count)}
}

func checkActor(cfg *config.Config) checkResult {
	if cfg.Actor == "" {
		return checkResult{"Actor", "WARN", "not configured; permission-gated commands need --actor"}
	}
	return checkResult{"Actor", "PASS", cfg.Actor}
}

func checkNotify(cfg *config.Config) checkResult {
	if cfg.Notify.Platform == "" || cfg.Notify.Platform == "none" {
		return checkResult{"Notifier", "WARN", "no platform configured; cad notify run is disabled"}
	}
	switch cfg.Notify.Platform {
	case "slack":
		if cfg.Notify.SlackBotToken == "" {
			return checkResult{"Notifier", "WARN", "slack configured but bot token missing"}
		}
	case "discord":
		if cfg.Notify.DiscordToken == "" {
			return checkResult{"Notifier", "WARN", "discord configured but bot token missing"}
		}
	default:
		return checkResult{"Notifier", "FAIL", fmt.Sprintf("unsupported platform %q", cfg.Notify.Platform)}
	}
	return checkResult{"Notifier", "PASS", fmt.Sprintf("%s on %s", cfg.Notify.Platform, cfg.Notify.Channel)}
}

func checkGitHub(cfg *config.Config) checkResult {
	if cfg.GitHub.Owner == "" && cfg.GitHub.Repo == "" {
		return checkResult{"GitHub import", "WARN", "not configured (optional)"}
	}
	if cfg.GitHub.Owner == "" || cfg.GitHub.Repo == "" {
		return checkResult{"GitHub import", "WARN", "incomplete; set both github.owner and github.repo"}
	}
	return checkResult{"GitHub import", "PASS", fmt.Sprintf("%s/%s", cfg.GitHub.Owner, cfg.GitHub.Repo)}
}
