package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/owenthereal/webterm/cmd/webtermd/command"
	webtermctx "github.com/owenthereal/webterm/internal/context"
	"github.com/owenthereal/webterm/internal/logging"
)

func main() {
	logger := logging.Must(logging.Console())

	code := 0
	ctx := webtermctx.WithLogger(context.Background(), logger)
	if err := command.Root().ExecuteContext(ctx); err != nil {
		var cfgErr *command.ConfigError
		if errors.As(err, &cfgErr) {
			fmt.Fprintln(os.Stderr, cfgErr.Error())
		} else {
			logger.Error("webtermd exited", "error", err)
		}
		code = 1
	}

	_ = logger.Close()
	os.Exit(code)
}
