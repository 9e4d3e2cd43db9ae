package main

import (
	"fmt"
	"strings"
	"time"

	"sales-service/internal/domain"
	"sales-service/internal/money"
	"sales-service/internal/status"

	"github.com/spf13/cobra"
)

func (a *app) statusCmd() *cobra.Command {
	var (
		payments   []string
		saleStatus string
		now        string
	)

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Classify payments as PAID, PENDING or OVERDUE",
		Example: `  salesctl status --payment 2024-06-09:100:PAID --payment 2024-06-10:100 --now 2024-06-10T12:00:00-03:00`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			loc, err := a.location()
			if err != nil {
				return err
			}
			classifier := status.NewClassifier(loc)

			at := a.now()
			if now != "" {
				if at, err = time.Parse(time.RFC3339, now); err != nil {
					return fmt.Errorf("now: %w", err)
				}
			}

			parsed := make([]domain.Payment, len(payments))
			for i, raw := range payments {
				if parsed[i], err = parsePayment(i+1, raw); err != nil {
					return err
				}
			}

			out := cmd.OutOrStdout()
			for _, p := range parsed {
				due := "-"
				if !p.DueDate.IsZero() {
					due = p.DueDate.Format(time.DateOnly)
				}
				fmt.Fprintf(out, "%2d  %s  %14s  %s\n", p.Number, due, money.Format(p.Amount), classifier.Effective(p, at))
			}

			tx := domain.TransactionStatus(strings.ToUpper(saleStatus))
			summary := classifier.Summarize(parsed, at)
			fmt.Fprintf(out, "sale: %s (paid %s, outstanding %s)\n",
				classifier.Aggregate(tx, parsed, at), money.Format(summary.Paid), money.Format(summary.Outstanding))
			return nil
		},
	}

	cmd.Flags().StringArrayVar(&payments, "payment", nil, "payment as due_date:amount[:PAID] (repeatable)")
	cmd.Flags().StringVar(&saleStatus, "sale-status", string(domain.TransactionCompleted), "QUOTE or COMPLETED")
	cmd.Flags().StringVar(&now, "now", "", "override the current instant (RFC3339)")
	return cmd
}

func parsePayment(number int, raw string) (domain.Payment, error) {
	parts := strings.Split(raw, ":")
	if len(parts) < 2 || len(parts) > 3 {
		return domain.Payment{}, fmt.Errorf("payment %q: want due_date:amount[:PAID]", raw)
	}

	due, err := status.ParseDueDate(parts[0])
	if err != nil {
		return domain.Payment{}, err
	}
	amount, err := parseAmount("amount", parts[1])
	if err != nil {
		return domain.Payment{}, err
	}
	cents, err := money.ToMinorUnits(amount)
	if err != nil {
		return domain.Payment{}, err
	}

	p := domain.Payment{Number: number, Amount: cents, DueDate: due, Status: domain.PaymentOpen}
	if len(parts) == 3 {
		if !strings.EqualFold(parts[2], string(domain.PaymentPaid)) {
			return domain.Payment{}, fmt.Errorf("payment %q: unknown status %q", raw, parts[2])
		}
		p.Status = domain.PaymentPaid
	}
	return p, nil
}
