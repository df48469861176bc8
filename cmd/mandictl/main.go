package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/mamadbah2/mandi/internal/clients/mandi"
	"github.com/mamadbah2/mandi/internal/domain/models"
	"github.com/mamadbah2/mandi/internal/domain/settlement"
	"github.com/mamadbah2/mandi/internal/service/billing"
	"github.com/mamadbah2/mandi/pkg/logger"
)

const usage = `usage: mandictl [-api URL] [-token TOKEN] <command> [args]

commands:
  invoice <lot-id>              print the reconciled invoice
  pdf <lot-id> [-o file]        download the invoice PDF
  watch [-farmer id] [-every d] poll records and print changes
`

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, "mandictl:", err)
		os.Exit(1)
	}
}

func run(args []string, out io.Writer) error {
	global := flag.NewFlagSet("mandictl", flag.ContinueOnError)
	api := global.String("api", envOr("MANDI_API_URL", "http://localhost:8080"), "mandi API base URL")
	token := global.String("token", os.Getenv("MANDI_TOKEN"), "bearer token")
	level := global.String("log-level", "warn", "log level")
	global.Usage = func() { fmt.Fprint(global.Output(), usage) }
	if err := global.Parse(args); err != nil {
		return err
	}
	rest := global.Args()
	if len(rest) == 0 {
		global.Usage()
		return errors.New("missing command")
	}

	log, err := logger.New(*level)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client := mandi.NewClient(*api, *token)
	switch rest[0] {
	case "invoice":
		return invoiceCmd(ctx, client, rest[1:], out)
	case "pdf":
		return pdfCmd(ctx, client, rest[1:], out)
	case "watch":
		return watchCmd(ctx, client, rest[1:], out, log)
	default:
		global.Usage()
		return fmt.Errorf("unknown command %q", rest[0])
	}
}

func invoiceCmd(ctx context.Context, client *mandi.Client, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("invoice", flag.ContinueOnError)
	asJSON := fs.Bool("json", false, "print raw JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return errors.New("invoice needs exactly one lot id")
	}

	inv, err := client.Invoice(ctx, fs.Arg(0))
	if err != nil {
		return err
	}
	if *asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(inv)
	}
	printInvoice(out, inv)
	return nil
}

func pdfCmd(ctx context.Context, client *mandi.Client, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("pdf", flag.ContinueOnError)
	path := fs.String("o", "", "output file (default invoice-<id>.pdf)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return errors.New("pdf needs exactly one lot id")
	}
	id := fs.Arg(0)
	if *path == "" {
		*path = fmt.Sprintf("invoice-%s.pdf", id)
	}

	raw, err := client.InvoicePDF(ctx, id)
	if err != nil {
		return err
	}
	if err := os.WriteFile(*path, raw, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", *path, err)
	}
	fmt.Fprintf(out, "wrote %s (%d bytes)\n", *path, len(raw))
	return nil
}

func watchCmd(ctx context.Context, client *mandi.Client, args []string, out io.Writer, log *zap.Logger) error {
	fs := flag.NewFlagSet("watch", flag.ContinueOnError)
	farmerID := fs.String("farmer", "", "only this farmer's lots")
	every := fs.Duration("every", mandi.DefaultPollInterval, "poll interval")
	if err := fs.Parse(args); err != nil {
		return err
	}

	records := mandi.NewRecordCache()
	seen := make(map[string]int64)
	poller := mandi.NewPoller(func(ctx context.Context) ([]models.Lot, error) {
		return client.ListRecords(ctx, mandi.RecordQuery{FarmerID: *farmerID})
	}, records, *every, log.Named("poller"))
	poller.OnUpdate(func(lots []models.Lot) {
		for _, lot := range lots {
			if seen[lot.ID] == lot.Version {
				continue
			}
			seen[lot.ID] = lot.Version
			inv := settlement.Reconcile(lot, lot.FarmerID, settlement.DefaultRates())
			fmt.Fprintf(out, "%s  %-10s %-12s %-16s sold %s / %s %s  net Rs %s\n",
				time.Now().Format("15:04:05"), lot.ID, inv.Crop, inv.Status,
				billing.FormatQuantity(inv.SoldQuantity), billing.FormatQuantity(inv.TotalQuantity), inv.Unit,
				billing.FormatMoney(inv.FinalAmount))
		}
	})

	err := poller.Run(ctx)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func printInvoice(out io.Writer, inv settlement.Invoice) {
	fmt.Fprintf(out, "Lot %s  %s  %s\n", inv.LotID, inv.Crop, inv.Date.Format("2006-01-02"))
	fmt.Fprintf(out, "Farmer:     %s\n", inv.FarmerName)
	fmt.Fprintf(out, "Status:     %s\n", inv.Status)
	fmt.Fprintf(out, "Quantity:   %s %s (sold %s, awaiting %s)\n",
		billing.FormatQuantity(inv.TotalQuantity), inv.Unit,
		billing.FormatQuantity(inv.SoldQuantity), billing.FormatQuantity(inv.AwaitingQuantity))
	fmt.Fprintf(out, "Avg rate:   %.1f\n", inv.AverageRate)
	fmt.Fprintf(out, "Base:       Rs %s\n", billing.FormatMoney(inv.BaseAmount))
	fmt.Fprintf(out, "Commission: Rs %s\n", billing.FormatMoney(inv.Commission))
	fmt.Fprintf(out, "Net:        Rs %s\n", billing.FormatMoney(inv.FinalAmount))
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
