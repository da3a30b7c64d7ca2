// Command bookcli runs one scripted booking against a running simulator:
// search, pick a trip, hold seats, pay through the gateway checkout, and
// write the issued ticket to disk. It drives the workflow library directly,
// without the agent server in between.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Praveen-Yadav-74/wander-sphere-sub001/internal/fault"
	"github.com/Praveen-Yadav-74/wander-sphere-sub001/internal/models"
	"github.com/Praveen-Yadav-74/wander-sphere-sub001/internal/payment"
	"github.com/Praveen-Yadav-74/wander-sphere-sub001/internal/ticketing"
	"github.com/Praveen-Yadav-74/wander-sphere-sub001/internal/transit"
	"github.com/Praveen-Yadav-74/wander-sphere-sub001/internal/workflow"
)

func main() {
	base := flag.String("base", "http://localhost:9090", "simulator base URL")
	keyID := flag.String("key", "rzp_test_local", "gateway key id")
	keySecret := flag.String("secret", "rzp_test_secret", "gateway key secret")
	origin := flag.String("origin", "Bengaluru", "origin city")
	destination := flag.String("destination", "Hyderabad", "destination city")
	date := flag.String("date", time.Now().AddDate(0, 0, 3).Format("2006-01-02"), "travel date (YYYY-MM-DD)")
	tripID := flag.String("trip", "", "trip id to book (default: first result)")
	seats := flag.String("seats", "L1,U1", "comma-separated seat ids")
	manifest := flag.String("passengers", "Asha Rao:29:female,Vikram Rao:31:male", "passengers as Name:age:gender, comma-separated")
	out := flag.String("out", "", "ticket output path (default: suggested filename)")
	flag.Parse()

	log := logrus.New()
	log.SetLevel(logrus.WarnLevel)

	passengers, err := parseManifest(*manifest)
	if err != nil {
		fatalf("bad -passengers: %v", err)
	}
	travelDate, err := time.Parse("2006-01-02", *date)
	if err != nil {
		fatalf("bad -date: %v", err)
	}
	seatIDs := splitCSV(*seats)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	client := transit.NewClient(*base, 10*time.Second, nil, log)
	bus := payment.NewCallbackBus()
	checkout := &autoCheckout{base: *base, bus: bus}
	wf := workflow.New(workflow.Deps{
		Search:   client,
		Layouts:  client,
		Holds:    transit.NewHoldManager(client, 6, log),
		Payments: payment.NewOrchestrator(payment.NewGateway(*base+"/gateway", *keyID, *keySecret, 10*time.Second, log), checkout, bus, *keyID, log),
		Tickets:  ticketing.NewClient(*base, 10*time.Second, 3, log),
	}, workflow.Config{
		Profile:  models.UserProfile{Name: passengers[0].Name, Email: "traveller@example.com", Phone: "+919876500000"},
		Currency: "INR",
		Logger:   log,
	})

	snap, err := wf.Search(ctx, models.SearchCriteria{
		Origin:      *origin,
		Destination: *destination,
		Date:        travelDate,
		Passengers:  len(passengers),
	})
	if err != nil {
		fatalFault("search failed", err)
	}
	if len(snap.Trips) == 0 {
		fatalf("no trips from %s to %s on %s", *origin, *destination, *date)
	}

	fmt.Printf("%d trips from %s to %s on %s:\n", len(snap.Trips), *origin, *destination, *date)
	for _, t := range snap.Trips {
		fmt.Printf("  %-10s %-22s %s -> %s  %s  %d seats left\n",
			t.ID, t.Operator,
			t.DepartureTime.Local().Format("15:04"), t.ArrivalTime.Local().Format("15:04"),
			money(t.BasePrice, t.Currency), t.SeatsLeft)
	}

	chosen := *tripID
	if chosen == "" {
		chosen = snap.Trips[0].ID
	}
	if snap, err = wf.SelectTrip(ctx, chosen); err != nil {
		fatalFault("trip selection failed", err)
	}
	fmt.Printf("\nSelected %s; layout has %d seats\n", chosen, len(snap.SeatMap))

	if snap, err = wf.SelectSeats(ctx, seatIDs, passengers); err != nil {
		fatalFault("seat hold failed", err)
	}
	fmt.Printf("Holding %s for %s until %s\n",
		strings.Join(snap.ChosenSeats, ", "), money(snap.TotalAmount, snap.Currency),
		snap.Hold.ExpiresAt.Local().Format("15:04:05"))

	if snap, err = wf.Pay(ctx); err != nil {
		fatalFault("payment failed", err)
	}

	record := snap.Record
	fmt.Printf("\nBooked. Confirmation %s, payment %s, charged %s\n",
		record.ConfirmationCode, record.PaymentID, money(record.AmountCharged, record.Currency))

	pdf, filename, err := ticketing.BuildTicketPDF(record, snap.SelectedTrip)
	if err != nil {
		fatalf("ticket rendering failed: %v", err)
	}
	path := *out
	if path == "" {
		path = filename
	}
	if err := os.WriteFile(path, pdf, 0o644); err != nil {
		fatalf("writing ticket: %v", err)
	}
	fmt.Printf("Ticket written to %s\n", path)
}

// autoCheckout stands in for the gateway's hosted checkout page: as soon as a
// checkout opens it completes the payment against the simulator and feeds the
// result back through the callback bus.
type autoCheckout struct {
	base string
	bus  *payment.CallbackBus
}

func (a *autoCheckout) Present(ctx context.Context, spec payment.CheckoutSpec) error {
	fmt.Printf("Checkout opened for order %s (%s)\n", spec.OrderRef, money(spec.Amount, spec.Currency))
	go a.settle(spec.OrderRef)
	return nil
}

func (a *autoCheckout) settle(orderRef string) {
	resp, err := http.Post(a.base+"/gateway/checkout/"+orderRef+"/complete", "application/json", nil)
	if err != nil {
		a.bus.Publish(payment.CheckoutEvent{Kind: payment.EventDismissed, OrderRef: orderRef})
		return
	}
	defer resp.Body.Close()

	var env struct {
		Success bool `json:"success"`
		Data    struct {
			PaymentID string `json:"paymentId"`
			Signature string `json:"signature"`
		} `json:"data"`
		Message string `json:"message"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil || !env.Success {
		a.bus.Publish(payment.CheckoutEvent{Kind: payment.EventDismissed, OrderRef: orderRef})
		return
	}
	a.bus.Publish(payment.CheckoutEvent{
		Kind:      payment.EventSuccess,
		OrderRef:  orderRef,
		PaymentID: env.Data.PaymentID,
		Signature: env.Data.Signature,
	})
}

func parseManifest(s string) ([]models.Passenger, error) {
	var out []models.Passenger
	for _, entry := range splitCSV(s) {
		parts := strings.Split(entry, ":")
		if len(parts) != 3 {
			return nil, fmt.Errorf("%q is not Name:age:gender", entry)
		}
		age, err := strconv.Atoi(parts[1])
		if err != nil {
			return nil, fmt.Errorf("%q has a non-numeric age", entry)
		}
		out = append(out, models.Passenger{Name: parts[0], Age: age, Gender: parts[2]})
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("at least one passenger is required")
	}
	return out, nil
}

func splitCSV(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func money(amount int64, currency string) string {
	return fmt.Sprintf("%s %.2f", currency, float64(amount)/100)
}

func fatalFault(what string, err error) {
	if reason := fault.ReasonOf(err); reason != "" {
		fatalf("%s (%s): %v", what, reason, err)
	}
	fatalf("%s: %v", what, err)
}

func fatalf(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
