// Command newsletterctl runs newsletter operations outside the HTTP API:
// cron-triggered scheduler passes, manual sends, CSV import and export, and
// minting admin tokens.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ArowuTest/ecell-newsletter-backend/internal/app"
	"github.com/ArowuTest/ecell-newsletter-backend/internal/config"
	"github.com/ArowuTest/ecell-newsletter-backend/internal/config/environment"
	"github.com/ArowuTest/ecell-newsletter-backend/internal/models"
	"github.com/ArowuTest/ecell-newsletter-backend/pkg/jwt"
	"github.com/ArowuTest/ecell-newsletter-backend/pkg/logger"
	"github.com/spf13/cobra"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type cli struct {
	configPath string
	out        io.Writer
}

func main() {
	c := &cli{out: os.Stdout}

	root := &cobra.Command{
		Use:           "newsletterctl",
		Short:         "Operate the E-Cell newsletter backend",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&c.configPath, "config", environment.GetEnv("CONFIG_PATH", "."),
		"directory holding config.yaml (env CONFIG_PATH)")

	root.AddCommand(
		c.processDueCmd(),
		c.sendCmd(),
		c.sendToCmd(),
		c.importCmd(),
		c.exportCmd(),
		c.issueTokenCmd(),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := root.ExecuteContext(ctx)
	stop()
	_ = logger.Sync()
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func (c *cli) loadConfig() (*config.Config, error) {
	cfg, err := config.Load(c.configPath)
	if err != nil {
		return nil, err
	}
	logger.Init(logger.Config{Env: cfg.Log.Env, Level: cfg.Log.Level, ServiceName: "newsletterctl"})
	return cfg, nil
}

// withApp builds the application for one command and closes it afterwards.
func (c *cli) withApp(ctx context.Context, fn func(*app.App) error) error {
	cfg, err := c.loadConfig()
	if err != nil {
		return err
	}
	a, err := app.New(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close(context.Background())
	return fn(a)
}

func (c *cli) printJSON(v any) error {
	enc := json.NewEncoder(c.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func (c *cli) processDueCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "process-due",
		Short: "Send every scheduled campaign whose time has come (one scheduler pass)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.withApp(cmd.Context(), func(a *app.App) error {
				pass, err := a.Scheduler.ProcessDueCampaigns(cmd.Context())
				if err != nil {
					return err
				}
				return c.printJSON(pass)
			})
		},
	}
}

func (c *cli) sendCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "send <campaign-id>",
		Short: "Send a draft or scheduled campaign to all active subscribers now",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := primitive.ObjectIDFromHex(args[0])
			if err != nil {
				return fmt.Errorf("invalid campaign id %q", args[0])
			}
			return c.withApp(cmd.Context(), func(a *app.App) error {
				if err := a.MailReady(); err != nil {
					return err
				}
				result, err := a.Dispatcher.SendCampaign(cmd.Context(), id)
				if err != nil {
					return err
				}
				return c.printJSON(result)
			})
		},
	}
}

func (c *cli) sendToCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "send-to <campaign-id> <email>...",
		Short: "Send a campaign to explicit addresses without changing its status",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := primitive.ObjectIDFromHex(args[0])
			if err != nil {
				return fmt.Errorf("invalid campaign id %q", args[0])
			}
			return c.withApp(cmd.Context(), func(a *app.App) error {
				result, err := a.Dispatcher.SendCampaignToAddresses(cmd.Context(), id, args[1:])
				if err != nil {
					return err
				}
				return c.printJSON(result)
			})
		},
	}
}

func (c *cli) importCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import-subscribers <file.csv>",
		Short: "Import subscribers from a CSV file (Email, Name, Source, Interests)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()
			return c.withApp(cmd.Context(), func(a *app.App) error {
				summary, err := a.Subscribers.ImportCSV(cmd.Context(), f)
				if err != nil {
					return err
				}
				return c.printJSON(summary)
			})
		},
	}
}

func (c *cli) exportCmd() *cobra.Command {
	var status, out string
	cmd := &cobra.Command{
		Use:   "export-subscribers",
		Short: "Write subscribers as CSV",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			filter, err := statusFilter(status)
			if err != nil {
				return err
			}
			w := c.out
			if out != "" && out != "-" {
				f, err := os.Create(out)
				if err != nil {
					return err
				}
				defer f.Close()
				w = f
			}
			return c.withApp(cmd.Context(), func(a *app.App) error {
				n, err := a.Subscribers.ExportCSV(cmd.Context(), w, filter)
				if err != nil {
					return err
				}
				fmt.Fprintf(os.Stderr, "exported %d subscribers\n", n)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&status, "status", "all", "active, inactive or all")
	cmd.Flags().StringVarP(&out, "out", "o", "-", "output file, - for stdout")
	return cmd
}

func (c *cli) issueTokenCmd() *cobra.Command {
	var subject, email, role string
	var ttl time.Duration
	cmd := &cobra.Command{
		Use:   "issue-token",
		Short: "Mint an admin JWT signed with the configured secret",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := c.loadConfig()
			if err != nil {
				return err
			}
			if role != jwt.RoleAdmin && role != jwt.RoleSuperAdmin {
				return fmt.Errorf("role must be %s or %s", jwt.RoleAdmin, jwt.RoleSuperAdmin)
			}
			tokens, err := jwt.NewTokenService(cfg.JWT.Secret, "")
			if err != nil {
				return err
			}
			if subject == "" {
				subject = email
			}
			token, err := tokens.Issue(subject, email, role, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(c.out, token)
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "admin email recorded as the actor")
	cmd.Flags().StringVar(&subject, "subject", "", "token subject, defaults to the email")
	cmd.Flags().StringVar(&role, "role", jwt.RoleAdmin, "admin or super_admin")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "token lifetime")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func statusFilter(status string) (models.SubscriberFilter, error) {
	var filter models.SubscriberFilter
	switch status {
	case "", "all":
	case "active", "inactive":
		active := status == "active"
		filter.Active = &active
	default:
		return filter, fmt.Errorf("--status must be active, inactive or all, got %q", status)
	}
	return filter, nil
}
