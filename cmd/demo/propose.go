package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/spf13/cobra"
)

var proposeAddr string

func init() {
	proposeCmd.Flags().StringVar(&proposeAddr, "node", "http://localhost:8080", "admin address of the node to propose to")
	rootCmd.AddCommand(proposeCmd)
}

var proposeCmd = &cobra.Command{
	Use:   "propose [value]",
	Short: "Submit a value to a running node's replica",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		body, err := json.Marshal(struct {
			Value []byte `json:"value"`
		}{Value: []byte(args[0])})
		if err != nil {
			return err
		}

		resp, err := http.Post(proposeAddr+"/propose", "application/json", bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("propose: %w", err)
		}
		defer resp.Body.Close()

		var out struct {
			Accepted      bool   `json:"accepted"`
			CorrelationID string `json:"correlation_id"`
			Error         string `json:"error,omitempty"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
			return fmt.Errorf("propose: decode response: %w", err)
		}
		if !out.Accepted {
			return fmt.Errorf("propose rejected (correlation_id=%s): %s", out.CorrelationID, out.Error)
		}
		fmt.Printf("queued (correlation_id=%s)\n", out.CorrelationID)
		return nil
	},
}
