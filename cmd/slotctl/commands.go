package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/hackgods/slot-booking/internal/app"
	"github.com/hackgods/slot-booking/internal/catalog"
	"github.com/hackgods/slot-booking/internal/config"
	"github.com/hackgods/slot-booking/internal/identity"
	"github.com/hackgods/slot-booking/internal/logger"
	"github.com/hackgods/slot-booking/internal/slot"
)

// openApp loads config and connects the store. Every command needs the
// shared Postgres store since a memory store would vanish on exit.
func openApp(ctx context.Context) (*app.App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if cfg.StoreBackend != config.StorePostgres {
		return nil, errors.New("this command needs STORE_BACKEND=postgres")
	}

	log, err := logger.New(cfg.Env, cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	return app.Open(ctx, cfg, log.Named("slotctl"))
}

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending Postgres migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			// Open migrates as part of connecting.
			a, err := openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			fmt.Fprintln(cmd.OutOrStdout(), "migrations applied")
			return nil
		},
	}
}

func newGenerateCmd() *cobra.Command {
	var (
		providerID string
		dates      []string
		times      string
		duration   int
	)

	c := &cobra.Command{
		Use:   "generate",
		Short: "Create slots for a provider; existing slots are left untouched",
		RunE: func(cmd *cobra.Command, args []string) error {
			if providerID == "" || len(dates) == 0 || times == "" {
				return errors.New("--provider, --date and --times are required")
			}

			specs := make([]slot.Spec, 0)
			for _, t := range splitCSV(times) {
				specs = append(specs, slot.Spec{Time: t, Duration: duration})
			}

			a, err := openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			for _, date := range dates {
				created, err := a.Store.Generate(cmd.Context(), providerID, date, specs)
				if err != nil {
					return fmt.Errorf("generate %s: %w", date, err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s: created %d of %d slots\n", date, len(created), len(specs))
			}
			return nil
		},
	}

	c.Flags().StringVar(&providerID, "provider", "", "provider id")
	c.Flags().StringSliceVar(&dates, "date", nil, "date(s) as YYYY-MM-DD, repeatable")
	c.Flags().StringVar(&times, "times", "", "comma separated HH:MM start times")
	c.Flags().IntVar(&duration, "duration", slot.DefaultDuration, "slot length in minutes")
	return c
}

func newSweepCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Expire stale pending bookings once and release their slots",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			n, err := a.Engine.ExpireStalePending(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "expired %d bookings\n", n)
			return nil
		},
	}
}

func newScheduleCmd() *cobra.Command {
	var (
		providerID string
		r          slot.Range
	)

	c := &cobra.Command{
		Use:   "schedule",
		Short: "Print a provider's slots with the booking occupying each",
		RunE: func(cmd *cobra.Command, args []string) error {
			if providerID == "" {
				return errors.New("--provider is required")
			}

			a, err := openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			actor := identity.Actor{ID: providerID, Role: identity.RoleProvider}
			entries, err := a.Schedule.ProviderSchedule(cmd.Context(), actor, providerID, r)
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "DATE\tTIME\tMIN\tSLOT\tBOOKING\tCUSTOMER\tSERVICE")
			for _, e := range entries {
				bookingCol, customer, service := "-", "-", "-"
				if e.Booking != nil {
					bookingCol = string(e.Booking.Status)
					customer = e.Booking.CustomerID
					service = e.Booking.ServiceName
				}
				fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%s\t%s\t%s\n",
					e.Slot.Date, e.Slot.Time, e.Slot.Duration, e.Slot.Status, bookingCol, customer, service)
			}
			return tw.Flush()
		},
	}

	c.Flags().StringVar(&providerID, "provider", "", "provider id")
	c.Flags().StringVar(&r.Date, "date", "", "single date")
	c.Flags().StringVar(&r.From, "from", "", "range start date")
	c.Flags().StringVar(&r.To, "to", "", "range end date")
	return c
}

func newServicesCmd() *cobra.Command {
	var filter catalog.Filter
	var status string

	c := &cobra.Command{
		Use:   "services",
		Short: "List catalog services",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			filter.Status = catalog.Status(status)
			services, err := a.Catalog.List(cmd.Context(), filter)
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tPROVIDER\tNAME\tCATEGORY\tMIN\tPRICE\tSTATUS\tBOOKINGS")
			for _, s := range services {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%s %s\t%s\t%d\n",
					s.ID, s.ProviderID, s.Name, s.Category, s.Duration,
					s.Price.StringFixed(2), s.Currency, s.Status, s.BookingCount)
			}
			return tw.Flush()
		},
	}

	c.Flags().StringVar(&filter.ProviderID, "provider", "", "only this provider")
	c.Flags().StringVar(&filter.Category, "category", "", "only this category")
	c.Flags().StringVar(&status, "status", "", "active (default), paused or archived")
	return c
}

func splitCSV(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
