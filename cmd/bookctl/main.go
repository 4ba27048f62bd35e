package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"deal-lab/clock"
	"deal-lab/domain"
	"deal-lab/infrastructure/doma"
	"deal-lab/internal"

	"github.com/gookit/color"
	"github.com/olekukonko/tablewriter"
)

// bookctl prints the live orderbook for a tokenized domain as a table.
func main() {
	base := flag.String("api", "https://api.doma.example", "Doma API base URL")
	name := flag.String("domain", "", "Domain in label.tld form, e.g. laser.ape")
	demo := flag.Bool("demo", false, "Fall back to clearly marked demo data on fetch failure")
	flag.Parse()

	key, err := domain.ParseDomainKey(*name)
	if err != nil {
		log.Fatalf("invalid --domain: %v", err)
	}

	logger := internal.GetLogger("WARN")
	client := doma.NewClient(*base, clock.System(), logger, *demo)

	snapshot, err := client.FetchOrderbook(context.Background(), key)
	if err != nil {
		log.Fatalf("orderbook fetch failed: %v", err)
	}

	color.Bold.Printf("Orderbook for %s\n", key.Name())
	if snapshot.Degraded {
		color.Warn.Println("DEGRADED: live fetch failed, showing demo data")
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Side", "Price", "Size", "Maker"})
	table.SetAutoWrapText(false)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetTablePadding("\t")

	for _, ask := range snapshot.Asks {
		table.Append([]string{"ASK", ask.Price, fmt.Sprintf("%d", ask.Size), ask.Maker})
	}
	for _, bid := range snapshot.Bids {
		table.Append([]string{"BID", bid.Price, fmt.Sprintf("%d", bid.Size), bid.Maker})
	}
	table.Render()

	if snapshot.LastSale != nil {
		color.Info.Printf("Last sale: %s at %s (%s)\n",
			snapshot.LastSale.Price,
			snapshot.LastSale.Timestamp.Format("2006-01-02 15:04"),
			snapshot.LastSale.TxHash)
	}
}
