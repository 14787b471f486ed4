package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/kelseyhightower/envconfig"
	_ "github.com/lib/pq"
	"github.com/pressly/goose/v3"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/clinicore/clinic-api/internal/repository/postgres"
	"github.com/clinicore/clinic-api/internal/seeder"
	auditService "github.com/clinicore/clinic-api/internal/service/audit"
	"github.com/clinicore/clinic-api/pkg/logger"
)

// seederConfig is read from the environment; the seeder is an operational
// tool and runs where no config file is mounted.
type seederConfig struct {
	DatabaseHost     string `envconfig:"DB_HOST" default:"localhost"`
	DatabasePort     int    `envconfig:"DB_PORT" default:"5432"`
	DatabaseUser     string `envconfig:"DB_USER" default:"postgres"`
	DatabasePassword string `envconfig:"DB_PASSWORD"`
	DatabaseName     string `envconfig:"DB_NAME" default:"clinicore"`
	SSLMode          string `envconfig:"DB_SSLMODE" default:"disable"`
	Environment      string `envconfig:"ENVIRONMENT" default:"development"`
	LogLevel         string `envconfig:"LOG_LEVEL" default:"info"`
}

func (c seederConfig) dsn() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.DatabaseHost, c.DatabasePort, c.DatabaseUser, c.DatabasePassword, c.DatabaseName, c.SSLMode)
}

var migrationsDir string

var rootCmd = &cobra.Command{
	Use:   "seeder",
	Short: "Clinicore permission system setup",
	Long:  "Migrates the schema, seeds the permission catalog and system roles, and upgrades legacy memberships.",
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Run schema migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadSeederConfig()
		if err != nil {
			return err
		}

		db, err := goose.OpenDBWithDriver("postgres", cfg.dsn())
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		defer db.Close()

		return goose.RunContext(cmd.Context(), "up", db, migrationsDir)
	},
}

var seedPermissionsCmd = &cobra.Command{
	Use:   "seed-permissions",
	Short: "Seed the permission catalog",
	RunE: func(cmd *cobra.Command, args []string) error {
		s, closer, err := buildSeeder()
		if err != nil {
			return err
		}
		defer closer()

		result, err := s.SeedPermissions(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Printf("permissions: created=%d updated=%d total=%d\n",
			result.Created, result.Updated, result.Total)
		return nil
	},
}

var seedRolesCmd = &cobra.Command{
	Use:   "seed-roles",
	Short: "Seed the system roles",
	RunE: func(cmd *cobra.Command, args []string) error {
		s, closer, err := buildSeeder()
		if err != nil {
			return err
		}
		defer closer()

		result, err := s.SeedRoles(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Printf("roles: created=%d updated=%d total=%d\n",
			result.Created, result.Updated, result.Total)
		return nil
	},
}

var setupCmd = &cobra.Command{
	Use:   "setup",
	Short: "Seed permissions and roles, then migrate legacy memberships",
	RunE: func(cmd *cobra.Command, args []string) error {
		s, closer, err := buildSeeder()
		if err != nil {
			return err
		}
		defer closer()

		result, err := s.Setup(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Printf("permissions: created=%d updated=%d total=%d\n",
			result.Permissions.Created, result.Permissions.Updated, result.Permissions.Total)
		fmt.Printf("roles: created=%d updated=%d total=%d\n",
			result.Roles.Created, result.Roles.Updated, result.Roles.Total)
		fmt.Printf("memberships migrated: %d\n", result.Migrated)
		return nil
	},
}

var migrateUsersCmd = &cobra.Command{
	Use:   "migrate-users",
	Short: "Upgrade legacy flat-permission memberships to role assignments",
	RunE: func(cmd *cobra.Command, args []string) error {
		s, closer, err := buildSeeder()
		if err != nil {
			return err
		}
		defer closer()

		migrated, err := s.MigrateLegacyMemberships(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Printf("memberships migrated: %d\n", migrated)
		return nil
	},
}

var rollbackCmd = &cobra.Command{
	Use:   "rollback",
	Short: "Remove seeded permissions and roles (refused in production)",
	RunE: func(cmd *cobra.Command, args []string) error {
		s, closer, err := buildSeeder()
		if err != nil {
			return err
		}
		defer closer()

		return s.Rollback(cmd.Context())
	},
}

func init() {
	migrateCmd.Flags().StringVarP(&migrationsDir, "dir", "d", "migrations", "sql migrations directory")
	rootCmd.AddCommand(migrateCmd, seedPermissionsCmd, seedRolesCmd, setupCmd, migrateUsersCmd, rollbackCmd)
}

func loadSeederConfig() (*seederConfig, error) {
	var cfg seederConfig
	if err := envconfig.Process("CLINIC", &cfg); err != nil {
		return nil, fmt.Errorf("failed to read environment: %w", err)
	}
	return &cfg, nil
}

func buildSeeder() (*seeder.Seeder, func(), error) {
	cfg, err := loadSeederConfig()
	if err != nil {
		return nil, nil, err
	}

	db, err := sqlx.Connect("postgres", cfg.dsn())
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	log := logger.NewLogger(&logger.Config{
		Level:      level,
		TimeFormat: time.RFC3339,
		Output:     os.Stdout,
	})

	auditor := auditService.NewService(postgres.NewAuditRepository(db), log)
	s := seeder.New(
		db,
		postgres.NewPermissionRepository(db),
		postgres.NewRoleRepository(db),
		postgres.NewMembershipRepository(db),
		auditor,
		log,
		cfg.Environment,
	)
	return s, func() { db.Close() }, nil
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
