package main

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/spf13/cobra"
)

var statusAddr string

func init() {
	statusCmd.Flags().StringVar(&statusAddr, "node", "http://localhost:8080", "admin address of the node to query")
	rootCmd.AddCommand(statusCmd)
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Report a running node's proposer role and last decided slot",
	RunE: func(cmd *cobra.Command, args []string) error {
		resp, err := http.Get(statusAddr + "/status")
		if err != nil {
			return fmt.Errorf("status: %w", err)
		}
		defer resp.Body.Close()

		var out struct {
			ID       uint32 `json:"id"`
			Status   string `json:"status"`
			LastSlot uint64 `json:"last_slot,omitempty"`
			HasLast  bool   `json:"has_last"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
			return fmt.Errorf("status: decode response: %w", err)
		}

		fmt.Printf("node %d: %s\n", out.ID, out.Status)
		if out.HasLast {
			fmt.Printf("last decided slot: %d\n", out.LastSlot)
		} else {
			fmt.Println("no slot decided yet")
		}
		return nil
	},
}
