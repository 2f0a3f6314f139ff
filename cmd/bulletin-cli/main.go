package main

import (
	"bulletin-scraper/cmd/bulletin-cli/commands"
	"bulletin-scraper/lib/serviceutil"
	"bulletin-scraper/lib/telemetry"
)

func main() {
	ctx := serviceutil.SignalContext()
	telemetry.SetupFromEnv(ctx, "bulletin-cli")
	commands.ExecuteContext(ctx)
}
