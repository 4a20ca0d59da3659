package commands

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"sort"
	"strings"

	"github.com/benvon/originguard/internal/config"
	"github.com/benvon/originguard/internal/cors"
	"github.com/benvon/originguard/internal/database"
	"github.com/benvon/originguard/internal/models"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

// NewCorsCmd creates the cors command with list, add, remove and check subcommands.
func NewCorsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cors",
		Short: "Manage allowed CORS origins",
		Long: "Manage the extra allowed origins stored in the database and check how an origin " +
			"is decided. The server reads stored origins once at startup, so restart it after changes.",
	}
	cmd.AddCommand(newCorsListCmd())
	cmd.AddCommand(newCorsAddCmd())
	cmd.AddCommand(newCorsRemoveCmd())
	cmd.AddCommand(newCorsCheckCmd())
	return cmd
}

// withRepo loads config, connects to the database and hands fn a repository.
func withRepo(ctx context.Context, fn func(*database.CorsOriginRepository) error) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	db, err := database.New(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to close database: %v\n", err)
		}
	}()
	if err := db.EnsureSchema(ctx); err != nil {
		return err
	}
	return fn(database.NewCorsOriginRepository(db))
}

func newCorsListCmd() *cobra.Command {
	var env string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List stored origins for an environment",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			return withRepo(ctx, func(repo *database.CorsOriginRepository) error {
				origins, err := repo.List(ctx, env)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if len(origins) == 0 {
					fmt.Fprintf(out, "No stored origins for environment %q\n", env)
					return nil
				}
				fmt.Fprintf(out, "Stored origins for environment %q:\n", env)
				for _, o := range origins {
					fmt.Fprintf(out, "  - %s  %-5s  %s\n", o.ID, o.Kind, o.Value)
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&env, "env", config.AppEnv(), "Deployment environment")
	return cmd
}

func newCorsAddCmd() *cobra.Command {
	var env, exact, regex string
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Store an extra allowed origin",
		Example: "  originguard-configure cors add --env production --exact https://admin.example.com\n" +
			`  originguard-configure cors add --env staging --regex '^https://[a-z0-9-]+\.preview\.example\.com$'`,
		RunE: func(cmd *cobra.Command, args []string) error {
			o, err := originFromFlags(env, exact, regex)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			return withRepo(ctx, func(repo *database.CorsOriginRepository) error {
				if err := repo.Add(ctx, o); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Added %s origin %s (id %s). Restart the server to apply.\n", o.Kind, o.Value, o.ID)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&env, "env", config.AppEnv(), "Deployment environment")
	cmd.Flags().StringVar(&exact, "exact", "", "Literal origin, e.g. https://app.example.com")
	cmd.Flags().StringVar(&regex, "regex", "", "Regular expression matched against the whole origin")
	cmd.MarkFlagsMutuallyExclusive("exact", "regex")
	cmd.MarkFlagsOneRequired("exact", "regex")
	return cmd
}

func originFromFlags(env, exact, regex string) (*models.CorsOrigin, error) {
	switch {
	case exact != "" && regex != "":
		return nil, errors.New("use only one of --exact or --regex")
	case exact != "":
		return &models.CorsOrigin{Environment: env, Kind: models.OriginKindExact, Value: exact}, nil
	case regex != "":
		return &models.CorsOrigin{Environment: env, Kind: models.OriginKindRegex, Value: regex}, nil
	default:
		return nil, errors.New("one of --exact or --regex is required")
	}
}

func newCorsRemoveCmd() *cobra.Command {
	var id string
	cmd := &cobra.Command{
		Use:   "remove",
		Short: "Delete a stored origin by ID",
		RunE: func(cmd *cobra.Command, args []string) error {
			parsed, err := uuid.Parse(strings.TrimSpace(id))
			if err != nil {
				return fmt.Errorf("invalid --id: %w", err)
			}
			ctx := cmd.Context()
			return withRepo(ctx, func(repo *database.CorsOriginRepository) error {
				if err := repo.Remove(ctx, parsed); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed origin %s. Restart the server to apply.\n", parsed)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&id, "id", "", "ID shown by 'cors list'")
	_ = cmd.MarkFlagRequired("id")
	return cmd
}

func newCorsCheckCmd() *cobra.Command {
	var env, policyFile, frontendURL string
	var withDB bool
	cmd := &cobra.Command{
		Use:   "check <origin>",
		Short: "Show how the server would decide an origin",
		Long: "Builds the allowed origin set the server would use (policy, FRONTEND_URL and, with --with-db, " +
			"stored origins) and prints the decision plus the headers an allowed origin receives. " +
			"Exits non-zero when the origin is rejected.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			policy, err := cors.LoadPolicy(policyFile)
			if err != nil {
				return err
			}

			var stored []cors.Pattern
			if withDB {
				ctx := cmd.Context()
				err := withRepo(ctx, func(repo *database.CorsOriginRepository) error {
					var err error
					stored, err = repo.Patterns(ctx, env)
					return err
				})
				if err != nil {
					return err
				}
			}

			authz, err := policy.NewAuthorizerForEnv(env, frontendURL, stored...)
			if err != nil {
				return err
			}
			return printDecision(cmd, authz, args[0])
		},
	}
	cmd.Flags().StringVar(&env, "env", config.AppEnv(), "Deployment environment")
	cmd.Flags().StringVar(&policyFile, "policy", os.Getenv("CORS_CONFIG_FILE"), "Policy file; empty uses the built-in policy")
	cmd.Flags().StringVar(&frontendURL, "frontend-url", os.Getenv("FRONTEND_URL"), "Extra literal origin, as FRONTEND_URL")
	cmd.Flags().BoolVar(&withDB, "with-db", false, "Include origins stored in the database")
	return cmd
}

func printDecision(cmd *cobra.Command, authz *cors.Authorizer, origin string) error {
	out := cmd.OutOrStdout()
	decision, err := authz.Authorize(origin)
	if err != nil {
		fmt.Fprintf(out, "rejected: %s\n", origin)
		return err
	}
	if origin == "" {
		fmt.Fprintln(out, "allowed: no Origin header, no CORS headers are sent")
		return nil
	}

	fmt.Fprintf(out, "allowed: %s\n", origin)
	h := http.Header{}
	decision.Apply(h)
	keys := make([]string, 0, len(h))
	for k := range h {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(out, "  %s: %s\n", k, strings.Join(h.Values(k), ", "))
	}
	return nil
}
