package main

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"gastos/internal/log"
	"gastos/internal/services"
	"gastos/internal/storage"
)

var activateCmd = &cobra.Command{
	Use:   "activate <id>",
	Short: "Resume projections of a recurring expense",
	Args:  cobra.ExactArgs(1),
	RunE:  func(cmd *cobra.Command, args []string) error { return runWrite(cmd, args[0], "activate") },
}

var deactivateCmd = &cobra.Command{
	Use:   "deactivate <id>",
	Short: "Stop projecting a recurring expense",
	Args:  cobra.ExactArgs(1),
	RunE:  func(cmd *cobra.Command, args []string) error { return runWrite(cmd, args[0], "deactivate") },
}

var deleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a stored expense",
	Args:  cobra.ExactArgs(1),
	RunE:  func(cmd *cobra.Command, args []string) error { return runWrite(cmd, args[0], "delete") },
}

func init() {
	rootCmd.AddCommand(activateCmd, deactivateCmd, deleteCmd)
}

func runWrite(cmd *cobra.Command, arg, action string) error {
	if err := requirePersistentStore(action); err != nil {
		return err
	}
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil || id <= 0 {
		return fmt.Errorf("invalid expense id %q", arg)
	}

	ctx := cmd.Context()
	res, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer res.Cleanup()

	var publisher services.ChangePublisher
	mq, err := openAMQP()
	if err != nil {
		logger.Error("Failed to initialize AMQP client", log.FieldError, err)
	} else if mq != nil {
		defer mq.Close()
		publisher = mq
	}
	svc := services.NewExpenseService(res.Store, publisher, nil, logger)

	switch action {
	case "activate":
		err = svc.SetActive(ctx, id, true)
	case "deactivate":
		err = svc.SetActive(ctx, id, false)
	default:
		err = svc.DeleteExpense(ctx, id)
	}
	if errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("expense %d not found", id)
	}
	if err != nil {
		return err
	}
	fmt.Printf("\n  Expense %d: %s done\n", id, action)
	return nil
}
