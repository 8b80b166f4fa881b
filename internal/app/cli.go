package app

import (
	"context"
	"flag"
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/kart-storefront/internal/domain/cart"
	"github.com/xenking/kart-storefront/internal/domain/checkout"
	"github.com/xenking/kart-storefront/internal/domain/invoice"
	"github.com/xenking/kart-storefront/internal/domain/product"
)

// ErrUsage is returned for an unknown command or malformed arguments.
var ErrUsage = errors.New("usage")

const usage = `Usage: storefront <command> [args]

Commands:
  login <dni> <username> <password>
  logout
  products
  product <id>
  cart
  add <id> [quantity]
  inc <id>
  dec <id>
  remove <id>
  checkout -email E -address A -phone P [-status paid|pending]
`

type command struct {
	// gated commands require a logged-in session.
	gated bool
	run   func(ctx context.Context, s *Storefront, out io.Writer, args []string) error
}

var commands = map[string]command{
	"login":    {run: cmdLogin},
	"logout":   {run: cmdLogout},
	"products": {gated: true, run: cmdProducts},
	"product":  {gated: true, run: cmdProduct},
	"cart":     {gated: true, run: cmdCart},
	"add":      {gated: true, run: cmdAdd},
	"inc":      {gated: true, run: cmdInc},
	"dec":      {gated: true, run: cmdDec},
	"remove":   {gated: true, run: cmdRemove},
	"checkout": {gated: true, run: cmdCheckout},
}

// Exec runs one storefront command against s, writing user output to out.
func Exec(ctx context.Context, s *Storefront, out io.Writer, args []string) error {
	if len(args) == 0 {
		_, _ = io.WriteString(out, usage)
		return ErrUsage
	}
	cmd, ok := commands[args[0]]
	if !ok {
		_, _ = io.WriteString(out, usage)
		return errors.Wrapf(ErrUsage, "unknown command %q", args[0])
	}
	if cmd.gated {
		id, err := s.Session.Current(ctx)
		if err != nil {
			return err
		}
		ctx = zctx.With(ctx, zap.String("dni", id.DNI))
	}
	return cmd.run(ctx, s, out, args[1:])
}

// RunClient opens the blob store, builds the storefront and runs args.
func RunClient(ctx context.Context, cfg *ClientConfig, t Telemetry, out io.Writer, args []string) error {
	blobs, closeBlobs, err := OpenBlobs(ctx, cfg.Blob)
	if err != nil {
		return err
	}
	defer func() { _ = closeBlobs() }()

	s, err := NewStorefront(ctx, *cfg, blobs, t)
	if err != nil {
		return err
	}
	return Exec(ctx, s, out, args)
}

func cmdLogin(ctx context.Context, s *Storefront, out io.Writer, args []string) error {
	if len(args) != 3 {
		return errors.Wrap(ErrUsage, "login <dni> <username> <password>")
	}
	id, err := s.Session.Login(ctx, args[0], args[1], args[2])
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintf(out, "Welcome, %s\n", id.Name)
	return nil
}

func cmdLogout(ctx context.Context, s *Storefront, out io.Writer, _ []string) error {
	if err := s.Session.Logout(ctx); err != nil {
		return err
	}
	_, _ = fmt.Fprintln(out, "Logged out")
	return nil
}

func cmdProducts(ctx context.Context, s *Storefront, out io.Writer, _ []string) error {
	ps, err := s.Remote.List(ctx)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "ID\tNAME\tPRICE\tSTOCK")
	for _, p := range ps {
		_, _ = fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", p.ID, p.Name, p.Price.StringFixed(2), stockLabel(p))
	}
	return tw.Flush()
}

func cmdProduct(ctx context.Context, s *Storefront, out io.Writer, args []string) error {
	id, err := idArg(args, "product <id>")
	if err != nil {
		return err
	}
	p, err := s.Remote.GetByID(ctx, id)
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintf(out, "%s\nPrice: %s\nStock: %s\n", p.Name, p.Price.StringFixed(2), stockLabel(*p))
	if p.Image != "" {
		_, _ = fmt.Fprintf(out, "Image: %s\n", p.Image)
	}
	return nil
}

func stockLabel(p product.Product) string {
	if !p.InStock() {
		return "out of stock"
	}
	return strconv.Itoa(p.Stock)
}

func cmdCart(ctx context.Context, s *Storefront, out io.Writer, _ []string) error {
	lines := s.Cart.Lines()
	if len(lines) == 0 {
		_, _ = fmt.Fprintln(out, "Cart is empty")
		return nil
	}

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "ID\tNAME\tQTY\tPRICE\tSUBTOTAL")
	for _, l := range lines {
		_, _ = fmt.Fprintf(tw, "%d\t%s\t%d\t%s\t%s\n",
			l.ProductID, l.Name, l.Quantity, l.Price.StringFixed(2), l.Subtotal().StringFixed(2))
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	totals, err := s.Checkout.Quote(ctx)
	if err != nil {
		return err
	}
	t := totals.Display()
	_, _ = fmt.Fprintf(out, "Subtotal: %s\nTax (%s%%): %s\nTotal: %s\n",
		t.Subtotal.StringFixed(2), t.TaxPercent.String(), t.Tax.StringFixed(2), t.Total.StringFixed(2))
	return nil
}

func cmdAdd(ctx context.Context, s *Storefront, out io.Writer, args []string) error {
	if len(args) < 1 || len(args) > 2 {
		return errors.Wrap(ErrUsage, "add <id> [quantity]")
	}
	id, err := idArg(args[:1], "add <id> [quantity]")
	if err != nil {
		return err
	}
	qty := 1
	if len(args) == 2 {
		if qty, err = strconv.Atoi(args[1]); err != nil {
			return errors.Wrapf(ErrUsage, "quantity %q", args[1])
		}
	}

	p, err := s.Remote.GetByID(ctx, id)
	if err != nil {
		return err
	}
	l, err := s.Cart.Add(ctx, *p, cart.ClampQuantity(qty, p.Stock))
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintf(out, "%s x%d in cart\n", l.Name, l.Quantity)
	return nil
}

func cmdInc(ctx context.Context, s *Storefront, out io.Writer, args []string) error {
	id, err := idArg(args, "inc <id>")
	if err != nil {
		return err
	}
	l, err := s.Cart.Increment(ctx, id)
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintf(out, "%s x%d in cart\n", l.Name, l.Quantity)
	return nil
}

func cmdDec(ctx context.Context, s *Storefront, out io.Writer, args []string) error {
	id, err := idArg(args, "dec <id>")
	if err != nil {
		return err
	}
	l, err := s.Cart.Decrement(ctx, id)
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintf(out, "%s x%d in cart\n", l.Name, l.Quantity)
	return nil
}

func cmdRemove(ctx context.Context, s *Storefront, out io.Writer, args []string) error {
	id, err := idArg(args, "remove <id>")
	if err != nil {
		return err
	}
	if err := s.Cart.Remove(ctx, id); err != nil {
		return err
	}
	_, _ = fmt.Fprintf(out, "Removed %d\n", id)
	return nil
}

func cmdCheckout(ctx context.Context, s *Storefront, out io.Writer, args []string) error {
	fs := flag.NewFlagSet("checkout", flag.ContinueOnError)
	fs.SetOutput(out)
	var (
		email   = fs.String("email", "", "contact email")
		address = fs.String("address", "", "delivery address")
		phone   = fs.String("phone", "", "contact phone")
		status  = fs.String("status", string(invoice.StatusPaid), "paid or pending")
	)
	if err := fs.Parse(args); err != nil {
		return errors.Wrap(ErrUsage, err.Error())
	}
	st, err := invoice.ParseStatus(*status)
	if err != nil {
		return checkout.ErrInvalidStatus
	}

	id, err := s.Session.Current(ctx)
	if err != nil {
		return err
	}
	res, err := s.Checkout.Checkout(ctx, checkout.Request{
		Customer: checkout.Customer{ID: id.DNI, Name: id.Name},
		Contact:  checkout.Contact{Email: *email, Address: *address, Phone: *phone},
		Status:   st,
	})
	if err != nil {
		if res != nil {
			_, _ = fmt.Fprintf(out, "Checkout %s failed at %s\n", res.ID, res.State)
		}
		return err
	}

	_, _ = fmt.Fprintln(out, res.Message())
	_, _ = fmt.Fprintf(out, "Total: %s (%s)\n", res.Totals.Display().Total.StringFixed(2), res.Status)
	for _, le := range res.LineErrors {
		_, _ = fmt.Fprintf(out, "Line not saved: %v\n", le)
	}
	if report := res.StockReport(); report != "" {
		_, _ = fmt.Fprintln(out, report)
	}
	return nil
}

func idArg(args []string, want string) (int64, error) {
	if len(args) != 1 {
		return 0, errors.Wrap(ErrUsage, want)
	}
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return 0, errors.Wrapf(ErrUsage, "product id %q", args[0])
	}
	return id, nil
}
