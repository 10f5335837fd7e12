package main

import (
	"fmt"
	"time"

	"github.com/AgusMolinaCode/FIRE_Api.git/internal/database"
	"github.com/AgusMolinaCode/FIRE_Api.git/internal/models"
	"github.com/AgusMolinaCode/FIRE_Api.git/internal/repository"
	"github.com/AgusMolinaCode/FIRE_Api.git/internal/services"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the schema and run pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := database.InitDB(cfg.Database.Driver, cfg.Database.URL); err != nil {
				return err
			}
			defer database.DB.Close()
			zap.L().Info("base de datos al día", zap.String("driver", cfg.Database.Driver))
			return nil
		},
	}
}

func seedProvidersCmd() *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "seed-providers",
		Short: "Insert or update the broker provider catalog",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := database.InitDB(cfg.Database.Driver, cfg.Database.URL); err != nil {
				return err
			}
			defer database.DB.Close()

			if file == "" {
				file = cfg.ProvidersFile
			}
			n, err := database.SeedProviders(cmd.Context(), database.DB, file)
			if err != nil {
				return err
			}
			zap.L().Info("brokers cargados", zap.Int("count", n))
			return nil
		},
	}
	cmd.Flags().StringVar(&file, "file", "", "YAML provider catalog (defaults to PROVIDERS_FILE)")
	return cmd
}

func processRecurringCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "process-recurring",
		Short: "Book every due recurring contribution once and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.close()

			n, err := a.processor.ProcessRecurringContributions(cmd.Context(), time.Now().UTC())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "processed %d recurring contributions\n", n)
			return nil
		},
	}
}

func reportCmd() *cobra.Command {
	var (
		email string
		days  int
		style string
	)
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Print a portfolio report for a user",
		RunE: func(cmd *cobra.Command, args []string) error {
			if email == "" {
				return fmt.Errorf("--email is required")
			}
			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.close()

			ctx := cmd.Context()
			account, err := a.users.GetAccountByEmail(ctx, email)
			if err != nil {
				return fmt.Errorf("loading account %s: %w", email, err)
			}

			end := time.Now().UTC()
			start := end.AddDate(0, 0, -days)
			r := models.DateRange{Start: &start, End: &end}

			md, err := buildReport(cmd, a, account, r)
			if err != nil {
				return err
			}
			out, err := services.RenderReport(md, style)
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), out)
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "email of the user account")
	cmd.Flags().IntVar(&days, "days", 30, "number of days covered by the report")
	cmd.Flags().StringVar(&style, "style", "dark", "glamour style (dark, light, notty, ascii)")
	return cmd
}

// buildReport arma el markdown con la variación de cada activo y del portafolio.
func buildReport(cmd *cobra.Command, a *app, account *models.UserAccount, r models.DateRange) (string, error) {
	ctx := cmd.Context()
	all := repository.ListQuery{Limit: 100}

	brokers, err := a.assets.ListBrokerAssets(ctx, account.ID, all)
	if err != nil {
		return "", err
	}
	generals, err := a.assets.ListGeneralAssets(ctx, account.ID, all)
	if err != nil {
		return "", err
	}
	assets, err := a.assets.AssetsWithHistory(ctx, account.ID, nil)
	if err != nil {
		return "", err
	}
	history := make(map[string][]models.AssetValue, len(assets))
	for _, h := range assets {
		history[h.ID] = h.History
	}

	var rows []services.ReportRow
	for _, b := range brokers {
		rows = append(rows, services.ReportRow{
			Name:   b.Name,
			Kind:   b.AccountType,
			Change: services.AssetChangeForRange(history[b.ID], r),
		})
	}
	for _, g := range generals {
		rows = append(rows, services.ReportRow{
			Name:   g.Name,
			Kind:   models.AssetTypeGeneral,
			Change: services.AssetChangeForRange(history[g.ID], r),
		})
	}

	overview := services.WithDisplay(services.PortfolioOverview(assets, r), cfg.Currency)
	return services.PortfolioReport(account.Email, overview, rows), nil
}
