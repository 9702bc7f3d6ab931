package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/hrpipe/internal/export"
	"github.com/JonMunkholm/hrpipe/internal/hr"
	"github.com/JonMunkholm/hrpipe/internal/report"
)

// staffFlags are the population filters shared by exports and reports.
type staffFlags struct {
	locationID int64
	divisionID int64
	staffID    int64
	status     string
}

func (f *staffFlags) register(cmd *cobra.Command) {
	cmd.Flags().Int64Var(&f.locationID, "location-id", 0, "Only staff at this office location")
	cmd.Flags().Int64Var(&f.divisionID, "division-id", 0, "Only staff in this division")
	cmd.Flags().Int64Var(&f.staffID, "staff-id", 0, "Only this staff member")
	cmd.Flags().StringVar(&f.status, "status", "", "Only staff with this employment status")
}

func (f *staffFlags) filter() (hr.StaffFilter, error) {
	filter := hr.StaffFilter{LocationID: f.locationID, DivisionID: f.divisionID, StaffID: f.staffID}
	if f.status != "" {
		st, err := hr.ParseEmploymentStatus(f.status)
		if err != nil {
			return hr.StaffFilter{}, err
		}
		filter.Status = st
	}
	return filter, nil
}

type exportOptions struct {
	staff  staffFlags
	start  string
	end    string
	period string
	output string
}

func newExportCmd(root *rootOptions) *cobra.Command {
	var opts exportOptions

	cmd := &cobra.Command{
		Use:       "export KIND",
		Short:     "Write a CSV export (staff, attendance, leaves, payroll)",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"staff", "attendance", "leaves", "payroll"},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExport(cmd, root, args[0], opts)
		},
	}

	opts.staff.register(cmd)
	cmd.Flags().StringVar(&opts.start, "start", "", "First day, YYYY-MM-DD (attendance, leaves)")
	cmd.Flags().StringVar(&opts.end, "end", "", "Last day, YYYY-MM-DD (attendance, leaves)")
	cmd.Flags().StringVar(&opts.period, "period", "", "Pay period, YYYY-MM (payroll)")
	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "Output file (default: stdout)")

	return cmd
}

func runExport(cmd *cobra.Command, root *rootOptions, kindName string, opts exportOptions) error {
	kind, err := export.ParseKind(kindName)
	if err != nil {
		return err
	}
	filter, err := opts.staff.filter()
	if err != nil {
		return err
	}

	req := export.Request{Kind: kind, Staff: filter}
	switch kind {
	case export.Attendance, export.Leaves:
		if req.Range, err = hr.ParseDateRange(opts.start, opts.end); err != nil {
			return err
		}
	case export.Payroll:
		if opts.period == "" {
			return fmt.Errorf("%w: --period is required", hr.ErrInvalidPeriod)
		}
		if req.Period, err = hr.ParseMonth(opts.period); err != nil {
			return err
		}
	}
	if err := req.Validate(); err != nil {
		return err
	}

	a, err := root.openApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	if opts.output == "" {
		return a.Exporter.Export(cmd.Context(), cmd.OutOrStdout(), req)
	}

	f, err := os.Create(opts.output)
	if err != nil {
		return err
	}
	if err := a.Exporter.Export(cmd.Context(), f, req); err != nil {
		f.Close()
		return fmt.Errorf("export %s: %w", kind, err)
	}
	return f.Close()
}

func newReportCmd(root *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Print attendance and leave reports as JSON",
	}
	cmd.AddCommand(
		newAttendanceReportCmd(root),
		newLeaveReportCmd(root),
		newBalancesReportCmd(root),
	)
	return cmd
}

func newAttendanceReportCmd(root *rootOptions) *cobra.Command {
	var (
		staff staffFlags
		month string
	)

	cmd := &cobra.Command{
		Use:   "attendance",
		Short: "Per-staff attendance counts and minutes for one month",
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := hr.ParseMonth(month)
			if err != nil {
				return err
			}
			filter, err := staff.filter()
			if err != nil {
				return err
			}

			a, err := root.openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			rep, err := a.Reports.AttendanceReport(cmd.Context(), filter, m)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), rep)
		},
	}
	staff.register(cmd)
	cmd.Flags().StringVar(&month, "month", "", "Month, YYYY-MM (required)")
	_ = cmd.MarkFlagRequired("month")
	return cmd
}

func newLeaveReportCmd(root *rootOptions) *cobra.Command {
	var q report.LeaveQuery
	var year int

	cmd := &cobra.Command{
		Use:   "leave",
		Short: "Leave requests and approval counts for a year or month",
		RunE: func(cmd *cobra.Command, args []string) error {
			q.Year = hr.AccountingYear(year)
			if _, err := q.Range(); err != nil {
				return err
			}

			a, err := root.openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			rep, err := a.Reports.LeaveReport(cmd.Context(), q)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), rep)
		},
	}
	cmd.Flags().IntVar(&year, "year", time.Now().Year(), "Accounting year")
	cmd.Flags().IntVar(&q.Month, "month", 0, "Month 1-12 (default: whole year)")
	cmd.Flags().Int64Var(&q.CategoryID, "category-id", 0, "Only this leave category")
	cmd.Flags().Int64Var(&q.StaffID, "staff-id", 0, "Only this staff member")
	return cmd
}

func newBalancesReportCmd(root *rootOptions) *cobra.Command {
	var (
		staff staffFlags
		year  int
	)

	cmd := &cobra.Command{
		Use:   "balances",
		Short: "Leave entitlement, usage and carry-over per staff member",
		Long: `Balances prints one entry per staff member. With --staff-id only that
member is listed and an unknown id is an error. The year defaults to
LEAVE_ACCOUNTING_YEAR, then the current calendar year.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			filter, err := staff.filter()
			if err != nil {
				return err
			}

			a, err := root.openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			y := hr.ResolveAccountingYear(a.Config.Leave.AccountingYear, time.Now())
			if year != 0 {
				if y, err = hr.ParseAccountingYear(year); err != nil {
					return err
				}
			}

			if filter.StaffID != 0 {
				b, err := a.Reports.StaffLeaveBalances(cmd.Context(), filter.StaffID, y)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), b)
			}

			all, err := a.Reports.AllLeaveBalances(cmd.Context(), filter, y)
			if err != nil {
				return err
			}
			if all == nil {
				all = []report.StaffLeaveBalances{}
			}
			return printJSON(cmd.OutOrStdout(), map[string]any{"year": int(y), "staff": all})
		},
	}
	staff.register(cmd)
	cmd.Flags().IntVar(&year, "year", 0, "Accounting year")
	return cmd
}
