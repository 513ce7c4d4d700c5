// FilePath: cmd/main.go
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	tm "github.com/buger/goterm"
	nuts "github.com/vaudience/go-nuts"

	"github.com/fabwatch/factoryhub/internal/config"
	"github.com/fabwatch/factoryhub/internal/server"
)

func main() {
	// Clear console and draw logo
	ClearConsole()
	DrawLogo()
	// Initialize version info
	nuts.InitVersion()
	nuts.L.Infof("[Main] Starting FactoryHub Server v%s", nuts.GetVersion())

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	srv, err := server.New(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize server: %v", err)
	}

	go func() {
		sigs := make(chan os.Signal, 1)
		signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
		<-sigs
		if err := srv.Shutdown(context.Background()); err != nil {
			nuts.L.Errorf("[Main] Shutdown error: %v", err)
		}
	}()

	if err := srv.Start(); err != nil {
		nuts.L.Errorf("[Main] Server error: %v", err)
		os.Exit(1)
	}
}

// ClearConsole clears the console screen and draws the logo.
func ClearConsole() {
	tm.Clear()
	tm.MoveCursor(1, 1)
	tm.Flush()
}

func DrawLogo() {
	fmt.Println()
	lines := []string{
		"    ______           __                   __  __      __  ",
		"   / ____/___ ______/ /_____  _______  __/ / / /_  __/ /_ ",
		"  / /_  / __ `/ ___/ __/ __ \\/ ___/ / / / /_/ / / / / __ \\",
		" / __/ / /_/ / /__/ /_/ /_/ / /  / /_/ / __  / /_/ / /_/ /",
		"/_/    \\__,_/\\___/\\__/\\____/_/   \\__, /_/ /_/\\__,_/_.___/ ",
		"................................/____/.....  " + nuts.GetVersion(),
	}

	for _, line := range lines {
		fmt.Println(line)
	}
}
