// jobpilot-cli — инструмент командной строки для управления демоном
// jobpilot через его HTTP API.
//
// Использование:
//
//	jobpilot-cli [--api-url URL] [--token TOKEN] [--json] <command> [flags]
//
// Команды:
//
//	status        Состояние демона и задачи в работе
//	history       Последние обработанные задачи
//	start, stop   Включение и выключение поллинга
//	poll          Немедленный опрос очереди
//	reset-stuck   Вернуть зависшие задачи в очередь
//	cancel-pending Отменить все ожидающие задачи
//	health        Проверка доступности очереди
//	settings      Настройки backend retry
//	stats         Управление статистикой
package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/shaiso/jobpilot/internal/cli"
)

// version задаётся через ldflags при сборке.
var version = "dev"

func main() {
	var apiURL string
	var token string
	var jsonOutput bool

	rootCmd := &cobra.Command{
		Use:           "jobpilot-cli",
		Short:         "jobpilot CLI — operator tool for the job runner daemon",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&apiURL, "api-url", envOr("JOBPILOT_API_URL", "http://localhost:8080"), "API server URL")
	rootCmd.PersistentFlags().StringVar(&token, "token", os.Getenv("JOBPILOT_API_TOKEN"), "API bearer token")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")

	clientFn := func() *cli.Client { return cli.NewClient(apiURL, token) }
	outputFn := func() *cli.Output { return cli.NewOutput(jsonOutput) }

	rootCmd.AddCommand(
		cli.NewStatusCmd(clientFn, outputFn),
		cli.NewHistoryCmd(clientFn, outputFn),
		cli.NewStartCmd(clientFn, outputFn),
		cli.NewStopCmd(clientFn, outputFn),
		cli.NewPollCmd(clientFn, outputFn),
		cli.NewResetStuckCmd(clientFn, outputFn),
		cli.NewCancelPendingCmd(clientFn, outputFn),
		cli.NewHealthCmd(clientFn, outputFn),
		cli.NewSettingsCmd(clientFn, outputFn),
		cli.NewStatsCmd(clientFn, outputFn),
	)

	if err := rootCmd.Execute(); err != nil {
		outputFn().Error(err.Error())
		os.Exit(1)
	}
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
