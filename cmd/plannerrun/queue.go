package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func pendingCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "pending",
		Short: "Show the oldest customer still waiting for a plan (read-only)",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, l, err := setup()
			if err != nil {
				return err
			}
			defer l.Sync()

			database, err := connectDB(cmd.Context(), cfg.DB, l)
			if err != nil {
				return err
			}
			defer database.Close()

			customer, err := database.FetchOldestPending(cmd.Context())
			if err != nil {
				return err
			}
			if customer == nil {
				fmt.Println("No pending customers")
				return nil
			}

			if asJSON {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(customer)
			}

			paidAt := "-"
			if customer.DataPagamento != nil {
				paidAt = customer.DataPagamento.Format("2006-01-02 15:04:05")
			}
			fmt.Printf("ID:        %d\n", customer.ID)
			fmt.Printf("Email:     %s\n", customer.Email)
			fmt.Printf("Status:    %s\n", customer.Status)
			fmt.Printf("Pago em:   %s\n", paidAt)
			fmt.Printf("Plano:     %d meses, %d dias/semana, %s\n", customer.Meses, customer.Dias, customer.Nivel)
			return nil
		},
	}

	cmd.Flags().BoolVarP(&asJSON, "json", "j", false, "Output as JSON")

	return cmd
}

func countCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "count",
		Short: "Print the number of registered customers",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, l, err := setup()
			if err != nil {
				return err
			}
			defer l.Sync()

			database, err := connectDB(cmd.Context(), cfg.DB, l)
			if err != nil {
				return err
			}
			defer database.Close()

			count, err := database.CountCustomers(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Println(count)
			return nil
		},
	}
}
