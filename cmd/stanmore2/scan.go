package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/srg/stanmore2/internal/scanner"
)

// scanCmd represents the scan command
var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Scan for nearby speakers",
	Long: `Scan for Bluetooth Low Energy devices and display their names, addresses
and signal strength. Marshall speakers are highlighted; use the address with
'serve' to start the bridge.`,
	RunE: runScan,
}

var (
	scanDuration  time.Duration
	scanFormat    string
	scanAllowList []string
	scanBlockList []string
)

func init() {
	scanCmd.Flags().DurationVarP(&scanDuration, "duration", "d", 10*time.Second, "Scan duration")
	scanCmd.Flags().StringVarP(&scanFormat, "format", "f", "table", "Output format (table, json)")
	scanCmd.Flags().StringSliceVar(&scanAllowList, "allow", nil, "Only show devices with these addresses")
	scanCmd.Flags().StringSliceVar(&scanBlockList, "block", nil, "Hide devices with these addresses")
}

func runScan(cmd *cobra.Command, args []string) error {
	if scanFormat != "table" && scanFormat != "json" {
		return fmt.Errorf("invalid format '%s': must be one of [table json]", scanFormat)
	}

	logger, err := configureLogger(cmd, logrus.PanicLevel)
	if err != nil {
		return err
	}

	cmd.SilenceUsage = true

	s, err := scanner.NewScanner(logger)
	if err != nil {
		return fmt.Errorf("failed to create BLE scanner: %w", err)
	}

	// Ctrl+C cuts the scan short; collected devices are still printed.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fmt.Printf("Scanning for BLE devices (%s)...\n", scanDuration)
	devices, err := s.Scan(ctx, &scanner.ScanOptions{
		Duration:        scanDuration,
		DuplicateFilter: true,
		AllowList:       scanAllowList,
		BlockList:       scanBlockList,
	}, nil)
	if err != nil {
		return err
	}

	if scanFormat == "json" {
		return printDevicesJSON(devices)
	}
	return printDevicesTable(devices)
}

// sortedDevices orders results by signal strength, strongest first.
func sortedDevices(devices map[string]scanner.DeviceInfo) []scanner.DeviceInfo {
	list := make([]scanner.DeviceInfo, 0, len(devices))
	for _, info := range devices {
		list = append(list, info)
	}
	sort.Slice(list, func(i, j int) bool {
		return list[i].RSSI > list[j].RSSI
	})
	return list
}

// isMarshallSpeaker reports whether a device name looks like one of the
// Marshall speaker family.
func isMarshallSpeaker(name string) bool {
	lower := strings.ToLower(name)
	return strings.Contains(lower, "stanmore") ||
		strings.Contains(lower, "marshall") ||
		strings.Contains(lower, "acton") ||
		strings.Contains(lower, "woburn")
}

func printDevicesTable(devices map[string]scanner.DeviceInfo) error {
	if len(devices) == 0 {
		fmt.Println("No devices found")
		return nil
	}

	highlight := color.New(color.FgGreen, color.Bold)

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tADDRESS\tRSSI")
	for _, info := range sortedDevices(devices) {
		name := info.Name
		if name == "" {
			name = "(unknown)"
		}
		if isMarshallSpeaker(info.Name) {
			name = highlight.Sprint(name)
		}
		fmt.Fprintf(w, "%s\t%s\t%d\n", name, info.Address, info.RSSI)
	}
	return w.Flush()
}

func printDevicesJSON(devices map[string]scanner.DeviceInfo) error {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(sortedDevices(devices))
}
