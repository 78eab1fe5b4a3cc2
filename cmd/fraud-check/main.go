package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/mikey/llm-billing-guard/internal/adapters/gateway"
	"github.com/mikey/llm-billing-guard/internal/core"
	"github.com/mikey/llm-billing-guard/internal/di"
)

func main() {
	// Environment file is optional
	_ = godotenv.Load()

	flags := di.ParseFlags()

	// Build the dependency injection container
	container, err := di.BuildCLIContainer(flags)
	if err != nil {
		fmt.Printf("Failed to build dependency container: %v\n", err)
		os.Exit(1)
	}

	// Run the application
	if err := container.Invoke(run); err != nil {
		fmt.Printf("Application error: %v\n", err)
		os.Exit(1)
	}
}

// run evaluates a single message read from a file or stdin
func run(
	logger *zap.Logger,
	flags *di.CLIFlags,
	cli *gateway.CLIGateway,
	classifier core.Classifier,
) error {
	defer logger.Sync()

	var reader io.Reader
	if flags.InputFile != "" {
		file, err := os.Open(flags.InputFile)
		if err != nil {
			logger.Error("Failed to open input file", zap.Error(err), zap.String("file", flags.InputFile))
			return err
		}
		defer file.Close()
		reader = file
		logger.Debug("Reading message from file", zap.String("file", flags.InputFile))
	} else {
		reader = os.Stdin
		logger.Debug("Reading message from stdin")
	}

	err := cli.Run(context.Background(), bufio.NewReader(reader))

	// Close any resources that need closing
	if closer, ok := classifier.(interface{ Close() error }); ok {
		if cerr := closer.Close(); cerr != nil {
			logger.Error("Failed to close classifier", zap.Error(cerr))
		}
	}

	return err
}
