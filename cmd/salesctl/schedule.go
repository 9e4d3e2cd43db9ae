package main

import (
	"fmt"
	"time"

	"sales-service/internal/domain"
	"sales-service/internal/money"
	"sales-service/internal/schedule"
	"sales-service/internal/status"

	"github.com/spf13/cobra"
)

func (a *app) scheduleCmd() *cobra.Command {
	var (
		method       string
		installments int
		total        string
		dueDates     []string
		autoFill     bool
		firstDue     string
		today        string
	)

	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Preview the payments a sale would commit",
		Example: `  salesctl schedule --method BOLETO --installments 3 --total 100 --auto-fill
  salesctl schedule --method CARTAO_CREDITO --installments 4 --total 1200 --today 2024-01-31`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			loc, err := a.location()
			if err != nil {
				return err
			}

			m, err := domain.ParseMethod(method)
			if err != nil {
				return err
			}
			amount, err := parseAmount("total", total)
			if err != nil {
				return err
			}
			cents, err := money.ToMinorUnits(amount)
			if err != nil {
				return err
			}

			day := schedule.Day(a.now().In(loc))
			if today != "" {
				if day, err = status.ParseDueDate(today); err != nil {
					return err
				}
				day = schedule.Day(day)
			}

			dates := make([]time.Time, len(dueDates))
			for i, raw := range dueDates {
				if dates[i], err = status.ParseDueDate(raw); err != nil {
					return err
				}
			}
			if m.ManualDates() && autoFill {
				dates = schedule.AutoFill(schedule.Resize(dates, installments), day)
			}

			first, err := status.ParseDueDate(firstDue)
			if err != nil {
				return err
			}

			payments, err := schedule.Build(schedule.Plan{
				Method:       m,
				Installments: installments,
				Total:        cents,
				DueDates:     dates,
				FirstDue:     first,
				Today:        day,
			})
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			for _, p := range payments {
				fmt.Fprintf(out, "%2d  %s  %14s  %s\n", p.Number, p.DueDate.Format(time.DateOnly), money.Format(p.Amount), p.Status)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&method, "method", "", "payment method (PIX, DINHEIRO, BOLETO, TRANSFERENCIA, CARTAO_CREDITO, CARTAO_DEBITO, CREDITO)")
	cmd.Flags().IntVar(&installments, "installments", 1, "number of installments")
	cmd.Flags().StringVar(&total, "total", "", "amount to split")
	cmd.Flags().StringArrayVar(&dueDates, "due", nil, "boleto due date YYYY-MM-DD, in installment order (repeatable)")
	cmd.Flags().BoolVar(&autoFill, "auto-fill", false, "fill missing boleto dates monthly from next month")
	cmd.Flags().StringVar(&firstDue, "first-due", "", "first card installment date (default today)")
	cmd.Flags().StringVar(&today, "today", "", "override today (YYYY-MM-DD)")
	_ = cmd.MarkFlagRequired("method")
	_ = cmd.MarkFlagRequired("total")
	return cmd
}
