// owd — CLI entry point.
//
// This tool estimates one-way latency between two peers with a three-step
// acknowledgment exchange: the originator sends payloads, the responder
// acknowledges them, and the originator reports the measured round trip
// back so the responder can compute the estimate.
//
// It can be launched interactively (no flags) or non-interactively via CLI
// flags (-role, -addr, -transport, -count, -interval, -ttl, -report, -pin,
// -mdns, -debug).
package main

import (
	"context"
	"flag"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"time"

	"github.com/pterm/pterm"

	"github.com/1ureka/owd/internal/app"
	"github.com/1ureka/owd/internal/config"
	"github.com/1ureka/owd/internal/util"
)

var version = "dev"

func main() {
	// Root context — cancelled on Ctrl+C.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	// CLI flags.
	role := flag.String("role", "", "Role: originator or responder")
	addr := flag.String("addr", "", "Address to dial (originator) or listen on (responder); defaults to localhost:8888 / 0.0.0.0:8888")
	kind := flag.String("transport", string(config.TransportTCP), "Transport: tcp, ws or webrtc")
	count := flag.Int("count", config.DefaultCount, "Number of payloads to send (originator only)")
	interval := flag.Duration("interval", config.DefaultInterval, "Pause between payloads (originator only)")
	ttl := flag.Duration("ttl", config.DefaultTTL, "Evict exchanges pending longer than this (0 disables)")
	report := flag.Duration("report", config.DefaultReport, "Statistics report period (0 disables)")
	pin := flag.String("pin", "", "Signaling PIN for the webrtc transport")
	mdns := flag.Bool("mdns", false, "Responder: advertise over mDNS; originator: discover the responder when -addr is empty")
	debugMode := flag.Bool("debug", false, "Enable debug logging")
	flag.Parse()

	if *debugMode {
		util.EnableDebug()
	}

	pterm.Info.Println(fmt.Sprintf("owd — v%s", version))
	pterm.Println()

	var cfg config.Config
	if *role == "" {
		// No -role flag → interactive mode.
		cfg = askConfig()
	} else {
		cfg = config.Default(config.Role(*role))
		switch {
		case *addr != "":
			cfg.Addr = *addr
		case *mdns && cfg.Role == config.RoleOriginator:
			cfg.Addr = "" // discover
		}
		cfg.Transport = config.TransportKind(*kind)
		cfg.Count = *count
		cfg.Interval = *interval
		cfg.TTL = *ttl
		cfg.Report = *report
		cfg.PIN = *pin
		cfg.Advertise = *mdns
	}
	cfg.Debug = *debugMode

	if err := cfg.Validate(); err != nil {
		util.LogError("%v", err)
		os.Exit(1)
	}

	var err error
	switch cfg.Role {
	case config.RoleOriginator:
		err = app.RunOriginator(ctx, cfg)
	case config.RoleResponder:
		err = app.RunResponder(ctx, cfg)
	}
	if err != nil {
		util.LogError("%s failed: %v", cfg.Role, err)
		os.Exit(1)
	}

	util.LogInfo("successfully closed %s", cfg.Role)
}

// ---------------------------------------------------------------------------
// Interactive mode
// ---------------------------------------------------------------------------

// askConfig falls back to interactive prompts when no -role flag is provided.
func askConfig() config.Config {
	role, _ := pterm.DefaultInteractiveSelect.
		WithOptions([]string{"Responder  — Receive payloads and estimate latency", "Originator — Send payloads to a responder"}).
		WithDefaultText("Select your role").
		Show()
	pterm.Println()

	kind, _ := pterm.DefaultInteractiveSelect.
		WithOptions([]string{string(config.TransportTCP), string(config.TransportWS), string(config.TransportWebRTC)}).
		WithDefaultText("Select the transport").
		Show()
	pterm.Println()

	if strings.HasPrefix(role, "Responder") {
		cfg := config.Default(config.RoleResponder)
		cfg.Transport = config.TransportKind(kind)
		cfg.Addr = askAddr("Listen address", cfg.Addr, false)
		cfg.Advertise, _ = pterm.DefaultInteractiveConfirm.
			WithDefaultText("Advertise over mDNS?").
			Show()
		pterm.Println()
		return cfg
	}

	cfg := config.Default(config.RoleOriginator)
	cfg.Transport = config.TransportKind(kind)
	cfg.Addr = askAddr("Responder address (empty = discover over mDNS)", cfg.Addr, true)
	if cfg.Transport == config.TransportWebRTC {
		cfg.PIN = askText("Signaling PIN")
	}
	cfg.Count = askInt("Number of payloads", cfg.Count)
	cfg.Interval = askDuration("Interval between payloads", cfg.Interval)
	return cfg
}

// ---------------------------------------------------------------------------
// Helper Functions
// ---------------------------------------------------------------------------

func askText(prompt string) string {
	raw, _ := pterm.DefaultInteractiveTextInput.
		WithDefaultText(prompt).
		Show()
	pterm.Println()
	return strings.TrimSpace(raw)
}

// askAddr prompts until a host:port (or, when allowEmpty, nothing) is entered.
func askAddr(prompt, def string, allowEmpty bool) string {
	for {
		raw, _ := pterm.DefaultInteractiveTextInput.
			WithDefaultText(prompt).
			WithDefaultValue(def).
			Show()
		raw = strings.TrimSpace(raw)
		pterm.Println()

		if raw == "" && allowEmpty {
			return ""
		}
		if _, _, err := net.SplitHostPort(raw); err == nil {
			return raw
		}

		util.LogWarning("invalid address: expected host:port")
		pterm.Println()
	}
}

// askInt prompts for a non-negative integer until a valid one is entered.
func askInt(prompt string, def int) int {
	for {
		raw, _ := pterm.DefaultInteractiveTextInput.
			WithDefaultText(prompt).
			WithDefaultValue(strconv.Itoa(def)).
			Show()
		pterm.Println()

		n, err := strconv.Atoi(strings.TrimSpace(raw))
		if err == nil && n >= 0 {
			return n
		}

		util.LogWarning("invalid number: must be 0 or greater")
		pterm.Println()
	}
}

// askDuration prompts for a Go duration such as 5ms until a valid one is entered.
func askDuration(prompt string, def time.Duration) time.Duration {
	for {
		raw, _ := pterm.DefaultInteractiveTextInput.
			WithDefaultText(prompt).
			WithDefaultValue(def.String()).
			Show()
		pterm.Println()

		d, err := time.ParseDuration(strings.TrimSpace(raw))
		if err == nil && d >= 0 {
			return d
		}

		util.LogWarning("invalid duration: use a value like 5ms or 1s")
		pterm.Println()
	}
}
