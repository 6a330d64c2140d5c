package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fentz26/stockwatch/internal/annotate"
	"github.com/fentz26/stockwatch/internal/envfile"
	"github.com/spf13/cobra"
)

var watchlistCmd = &cobra.Command{
	Use:   "watchlist",
	Short: "Read and edit STOCK_LIST in the env file",
	Long:  `Edits the env file directly. The file is taken from --env-file, then the config file, then ENV_FILE, then .env.`,
}

var watchlistGetCmd = &cobra.Command{
	Use:   "get",
	Short: "Print the current watchlist",
	Args:  cobra.NoArgs,
	RunE:  runWatchlistGet,
}

var watchlistSetCmd = &cobra.Command{
	Use:   "set [codes]",
	Short: "Replace the watchlist with a comma or newline separated list",
	Args:  cobra.ExactArgs(1),
	RunE:  runWatchlistSet,
}

var watchlistAnnotateCmd = &cobra.Command{
	Use:   "annotate",
	Short: "Rewrite the watchlist as code|name|sector|type entries",
	Args:  cobra.NoArgs,
	RunE:  runWatchlistAnnotate,
}

var (
	watchlistEnvFile string
	assumeYes        bool
)

func init() {
	watchlistCmd.PersistentFlags().StringVar(&watchlistEnvFile, "env-file", "", "Env file holding STOCK_LIST")
	watchlistAnnotateCmd.Flags().BoolVarP(&assumeYes, "yes", "y", false, "Write without asking for confirmation")

	watchlistCmd.AddCommand(watchlistGetCmd, watchlistSetCmd, watchlistAnnotateCmd)
}

func watchlistEditor() (*envfile.Editor, error) {
	if watchlistEnvFile != "" {
		return envfile.New(watchlistEnvFile), nil
	}
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return envfile.New(cfg.EnvFile), nil
}

func runWatchlistGet(cmd *cobra.Command, args []string) error {
	editor, err := watchlistEditor()
	if err != nil {
		return err
	}
	list, err := editor.StockList()
	if err != nil {
		return err
	}
	if list == "" {
		fmt.Printf("STOCK_LIST is empty in %s\n", editor.Filename())
		return nil
	}
	fmt.Println(list)
	return nil
}

func runWatchlistSet(cmd *cobra.Command, args []string) error {
	editor, err := watchlistEditor()
	if err != nil {
		return err
	}
	normalized, err := editor.SetStockList(args[0])
	if err != nil {
		return err
	}
	fmt.Printf("Updated %s: STOCK_LIST=%s\n", editor.Filename(), normalized)
	return nil
}

func runWatchlistAnnotate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	editor := envfile.New(cfg.EnvFile)
	if watchlistEnvFile != "" {
		editor = envfile.New(watchlistEnvFile)
	}

	list, err := editor.StockList()
	if err != nil {
		return err
	}

	proposal, err := annotate.New(cfg.QuoteClient(), nil).Build(context.Background(), list)
	if err != nil {
		return err
	}

	fmt.Println(strings.Repeat("=", 50))
	fmt.Println("Proposed STOCK_LIST:")
	fmt.Println(strings.Repeat("=", 50))
	fmt.Printf("STOCK_LIST=\"%s\"\n", proposal.Value)
	fmt.Println(strings.Repeat("=", 50))

	if !assumeYes && !confirm(os.Stdin, fmt.Sprintf("Update %s? (y/n): ", editor.Filename())) {
		fmt.Println("Cancelled.")
		return nil
	}

	if err := annotate.Apply(editor, proposal); err != nil {
		return err
	}
	fmt.Printf("Updated %s with %d annotated entries\n", editor.Filename(), len(proposal.Entries))
	return nil
}

func confirm(in io.Reader, prompt string) bool {
	fmt.Print(prompt)
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && line == "" {
		return false
	}
	return strings.EqualFold(strings.TrimSpace(line), "y")
}
