package main

import (
	"fmt"
	"strconv"
	"strings"

	"sales-service/internal/money"
	"sales-service/internal/pricing"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

func (a *app) priceCmd() *cobra.Command {
	var (
		items        []string
		discountKind string
		discount     string
		freight      string
	)

	cmd := &cobra.Command{
		Use:   "price",
		Short: "Price a draft sale",
		Example: `  salesctl price --item racao:2:89.90 --item coleira:1:25 --discount-kind PERCENT --discount 10 --freight 15`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			draft := pricing.NewDraft()
			for _, raw := range items {
				item, err := parseItem(raw)
				if err != nil {
					return err
				}
				draft = draft.WithItem(item)
			}

			kind, err := pricing.ParseDiscountKind(discountKind)
			if err != nil {
				return err
			}
			value, err := parseAmount("discount", discount)
			if err != nil {
				return err
			}
			freightValue, err := parseAmount("freight", freight)
			if err != nil {
				return err
			}

			breakdown, err := draft.
				WithDiscount(pricing.Discount{Kind: kind, Value: value}).
				WithFreight(freightValue).
				Price()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			for _, line := range draft.Items() {
				fmt.Fprintf(out, "%-20s %3d x %s\n", line.ProductID, line.Quantity, line.UnitPrice.StringFixed(2))
			}
			fmt.Fprintf(out, "Subtotal  %s\n", money.Format(breakdown.Subtotal))
			fmt.Fprintf(out, "Desconto -%s\n", money.Format(breakdown.Discount))
			fmt.Fprintf(out, "Frete     %s\n", money.Format(breakdown.Freight))
			fmt.Fprintf(out, "Total     %s\n", money.Format(breakdown.Total))
			return nil
		},
	}

	cmd.Flags().StringArrayVar(&items, "item", nil, "line as product:quantity:unit_price (repeatable)")
	cmd.Flags().StringVar(&discountKind, "discount-kind", "NONE", "NONE, PERCENT or FIXED")
	cmd.Flags().StringVar(&discount, "discount", "0", "discount percentage or amount")
	cmd.Flags().StringVar(&freight, "freight", "0", "freight amount")
	_ = cmd.MarkFlagRequired("item")
	return cmd
}

func parseItem(raw string) (pricing.LineItem, error) {
	parts := strings.Split(raw, ":")
	if len(parts) != 3 {
		return pricing.LineItem{}, fmt.Errorf("item %q: want product:quantity:unit_price", raw)
	}
	qty, err := strconv.Atoi(parts[1])
	if err != nil {
		return pricing.LineItem{}, fmt.Errorf("item %q: bad quantity: %w", raw, err)
	}
	price, err := parseAmount("unit price", parts[2])
	if err != nil {
		return pricing.LineItem{}, fmt.Errorf("item %q: %w", raw, err)
	}
	return pricing.LineItem{ProductID: parts[0], ProductName: parts[0], Quantity: qty, UnitPrice: price}, nil
}

// parseAmount accepts "12.50" and the comma decimal separator "12,50"
func parseAmount(what, raw string) (decimal.Decimal, error) {
	d, err := money.Parse(strings.Replace(raw, ",", ".", 1))
	if err != nil {
		return decimal.Zero, fmt.Errorf("%s: %w", what, err)
	}
	return d, nil
}
