package main

import (
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var (
	flagHostID   string
	flagHostName string
)

var createCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a room and print its join link",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		hostID := flagHostID
		if hostID == "" {
			hostID = uuid.NewString()
		}

		room, err := newRoomAPI(cfg).CreateRoom(cmd.Context(), hostID, flagHostName)
		if err != nil {
			return err
		}

		fmt.Fprintln(cmd.OutOrStdout(), roomCreatedView(room))
		return nil
	},
}

var roomCmd = &cobra.Command{
	Use:   "room <room-id>",
	Short: "Show who is in a room",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		info, err := newRoomAPI(cfg).Room(cmd.Context(), args[0])
		if err != nil {
			return err
		}

		fmt.Fprintln(cmd.OutOrStdout(), roomInfoView(info))
		return nil
	},
}

func init() {
	createCmd.Flags().StringVar(&flagHostID, "host-id", "", "host user id (random when empty)")
	createCmd.Flags().StringVarP(&flagHostName, "name", "n", defaultName(), "host display name")
}

func defaultName() string {
	if u := os.Getenv("USER"); u != "" {
		return u
	}
	return "guest"
}
