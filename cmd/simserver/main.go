// Command simserver serves the simulator websocket endpoint and, optionally,
// a browser dashboard and downstream telemetry targets.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"tracker-go/fusion"
	"tracker-go/server"
	"tracker-go/telemetry"
	"tracker-go/web"
)

func main() {
	variant := flag.String("filter", "ukf", "Filter variant: ekf or ukf")
	port := flag.Int("port", server.DefaultPort, "Simulator websocket port")
	cfgPath := flag.String("config", "", "Optional JSON tuning file")
	useLaser := flag.Bool("use-laser", true, "Process laser measurements")
	useRadar := flag.Bool("use-radar", true, "Process radar measurements")
	verbose := flag.Bool("verbose", false, "Log every update")
	dashPort := flag.Int("dash-port", 0, "Dashboard HTTP port (0 disables)")
	dashDist := flag.String("dash-dist", "", "Dashboard static files directory")
	udpOut := flag.String("udp-out", "", "Comma separated UDP telemetry targets (host:port)")
	tcpOut := flag.String("tcp-out", "", "Comma separated TCP telemetry targets (host:port)")
	flag.Parse()

	cfg := fusion.DefaultConfig()
	if *cfgPath != "" {
		var err error
		if cfg, err = fusion.LoadConfig(*cfgPath); err != nil {
			fmt.Fprintf(os.Stderr, "load config: %v\n", err)
			os.Exit(1)
		}
	}
	cfg.UseLaser = *useLaser
	cfg.UseRadar = *useRadar
	cfg.Verbose = *verbose

	var hub *web.Hub
	if *dashPort > 0 {
		ws := web.NewServer()
		hub = ws.Hub
		go func() {
			if err := ws.Start(*dashPort, *dashDist); err != nil {
				log.Fatalf("dashboard: %v", err)
			}
		}()
	}

	var sender *telemetry.Sender
	if *udpOut != "" || *tcpOut != "" {
		sender = telemetry.NewSender()
		for _, addr := range splitTargets(*udpOut) {
			if err := sender.AddUDPTarget(addr); err != nil {
				log.Fatalf("udp target %s: %v", addr, err)
			}
		}
		for _, addr := range splitTargets(*tcpOut) {
			sender.AddTCPTarget(addr)
		}
		if err := sender.Start(); err != nil {
			log.Fatalf("telemetry: %v", err)
		}
		defer sender.Stop()
	}

	srv := server.NewSimServer(func() (fusion.Filter, error) {
		return fusion.New(*variant, cfg)
	}, hub, sender)

	log.Printf("filter=%s laser=%v radar=%v std_a=%g std_yawdd=%g",
		*variant, cfg.UseLaser, cfg.UseRadar, cfg.StdA, cfg.StdYawdd)
	if err := srv.ListenAndServe(*port); err != nil {
		log.Fatalf("simulator server: %v", err)
	}
}

func splitTargets(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
