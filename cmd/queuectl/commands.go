package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/spec-kit/walkup-queue/internal/api/dto"
	"github.com/spec-kit/walkup-queue/internal/app"
	"github.com/spec-kit/walkup-queue/internal/config"
	"github.com/spec-kit/walkup-queue/internal/domain"
	"github.com/spec-kit/walkup-queue/internal/importer"
	"github.com/spec-kit/walkup-queue/internal/service"
)

func newMigrateCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or upgrade the ticket store schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := ctx.load()
			if err != nil {
				return err
			}
			defer logger.Sync() //nolint:errcheck
			cfg.Postgres.RunMigrations = true

			stores, err := app.OpenStores(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			stores.Close()
			fmt.Fprintf(cmd.OutOrStdout(), "Schema is current (%s)\n", cfg.Store.Driver)
			return nil
		},
	}
}

func newSeedCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Create the baseline staff and worker roster",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withEngine(cmd.Context(), func(_ *config.Config, engine *app.Engine) error {
				created, err := engine.Auth.Seed(cmd.Context(), service.BaselineIdentities)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Seeded %d of %d identities\n", created, len(service.BaselineIdentities))
				return nil
			})
		},
	}
}

func newImportCommand(ctx *commandContext) *cobra.Command {
	var (
		location string
		category string
		staffID  string
	)
	cmd := &cobra.Command{
		Use:   "import <file.xlsx>",
		Short: "Record a spreadsheet of past visits as closed tickets",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			file, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("open workbook: %w", err)
			}
			defer file.Close()

			rows, err := importer.ReadRows(file)
			if err != nil {
				return err
			}

			return ctx.withEngine(cmd.Context(), func(_ *config.Config, engine *app.Engine) error {
				result, err := engine.Imports.Import(cmd.Context(), service.ImportRequest{
					Rows:     rows,
					Location: domain.Location(strings.ToUpper(location)),
					Category: domain.Category(strings.ToUpper(category)),
					StaffID:  staffID,
				})
				if err != nil {
					return err
				}
				out := renderTable(
					[]string{"Created", "Duplicate", "Skipped"},
					[][]string{{strconv.Itoa(result.Created), strconv.Itoa(result.Duplicate), strconv.Itoa(result.Skipped)}},
					[]columnAlignment{alignRight, alignRight, alignRight},
				)
				fmt.Fprintln(cmd.OutOrStdout(), out)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&location, "location", string(domain.LocationOnSite), "Location applied to every row")
	cmd.Flags().StringVar(&category, "category", "", "Category applied to every row")
	cmd.Flags().StringVar(&staffID, "staff", "", "Id of the staff member recording the import")
	_ = cmd.MarkFlagRequired("category")
	_ = cmd.MarkFlagRequired("staff")
	return cmd
}

func newQueueCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "queue",
		Short: "Show the waiting queue and the tickets being served",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withEngine(cmd.Context(), func(cfg *config.Config, engine *app.Engine) error {
				loc, err := cfg.Queue.Location()
				if err != nil {
					return err
				}
				waiting, err := engine.Queue.WaitingQueue(cmd.Context())
				if err != nil {
					return err
				}
				serving, err := engine.Queue.InProgressList(cmd.Context())
				if err != nil {
					return err
				}
				rendered, err := engine.Presenter.Tickets(cmd.Context(), append(waiting, serving...))
				if err != nil {
					return err
				}
				if len(rendered) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "Queue is empty")
					return nil
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderTable(
					[]string{"#", "Ticket", "Requester", "Category", "Location", "Status", "Staff", "Since"},
					queueRows(rendered, loc),
					[]columnAlignment{alignRight, alignRight},
				))
				return nil
			})
		},
	}
}

func newSummaryCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "summary <requester-id>",
		Short: "Count a requester's visits per category",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withEngine(cmd.Context(), func(_ *config.Config, engine *app.Engine) error {
				summary, err := engine.Queue.VisitSummary(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				resp := engine.Presenter.Summary(summary)
				rows := make([][]string, 0, len(resp.Categories)+1)
				for _, c := range resp.Categories {
					rows = append(rows, []string{string(c.Category), strconv.FormatInt(c.Count, 10)})
				}
				rows = append(rows, []string{"TOTAL", strconv.FormatInt(resp.Total, 10)})
				fmt.Fprintf(cmd.OutOrStdout(), "%s (%s)\n", resp.RequesterName, resp.RequesterID)
				fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"Category", "Visits"}, rows, []columnAlignment{alignLeft, alignRight}))
				return nil
			})
		},
	}
}

func queueRows(tickets []dto.TicketResponse, loc *time.Location) [][]string {
	rows := make([][]string, 0, len(tickets))
	for i, t := range tickets {
		staff := "-"
		if t.AssignedStaffName != nil {
			staff = *t.AssignedStaffName
		}
		since := t.CreatedAt
		if t.StartedAt != nil {
			since = *t.StartedAt
		}
		rows = append(rows, []string{
			strconv.Itoa(i + 1),
			strconv.FormatInt(t.ID, 10),
			t.RequesterName,
			string(t.Category),
			string(t.Location),
			string(t.Status),
			staff,
			since.In(loc).Format("15:04"),
		})
	}
	return rows
}
