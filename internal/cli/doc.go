// Package cli реализует операторскую утилиту jobpilot.
//
// CLI работает через HTTP API демона и не импортирует его внутренние
// пакеты: типы ответов продублированы в client.go.
//
// Output поддерживает два режима: таблицы (text/tabwriter) и JSON
// (--json). Данные пишутся в stdout, сообщения (Success/Error) в
// stderr, поэтому вывод можно передавать по pipe:
//
//	jobpilot-cli history --json | jq '.[0]'
//
// Команды создаются фабриками (NewStatusCmd и т.д.), принимающими
// clientFn и outputFn — замыкания для ленивого создания Client и
// Output после парсинга PersistentFlags.
package cli
