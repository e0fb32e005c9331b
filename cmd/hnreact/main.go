// Command hnreact はニュース同期と評価APIのサーバー、ワーカー、運用コマンドを提供する。
package main

import (
	"fmt"
	"os"

	"github.com/hitoshi/hnreact/internal/app"
)

func main() {
	if err := app.Run(os.Stdout, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "hnreact: %v\n", err)
		os.Exit(1)
	}
}
