package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"gastos/internal/core"
	"gastos/internal/export/xlsx"
	"gastos/internal/log"
	"gastos/internal/seed"
	"gastos/internal/services"
)

var importCmd = &cobra.Command{
	Use:   "import <file.yaml|file.xlsx>",
	Short: "Store expenses from a YAML seed file or an exported workbook",
	Args:  cobra.ExactArgs(1),
	RunE:  runImport,
}

func init() {
	rootCmd.AddCommand(importCmd)
}

func runImport(cmd *cobra.Command, args []string) error {
	if err := requirePersistentStore("import"); err != nil {
		return err
	}
	ctx := cmd.Context()
	path := args[0]

	expenses, err := readExpenses(path)
	if err != nil {
		return err
	}
	if len(expenses) == 0 {
		fmt.Println("\n  No expenses found in", path)
		return nil
	}

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

	saved, err := services.NewExpenseService(res.Store, publisher, nil, logger).
		Import(ctx, expenses, filepath.Base(path))
	if err != nil {
		return err
	}
	fmt.Printf("\n  Imported %d expenses from %s\n", len(saved), path)
	return nil
}

func readExpenses(path string) ([]core.Expense, error) {
	if !strings.EqualFold(filepath.Ext(path), ".xlsx") {
		return seed.Load(path)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return xlsx.ReadExpenses(f)
}
