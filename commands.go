package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"
	"text/tabwriter"
	"time"

	"tecnoroute/internal/app"
	"tecnoroute/internal/config"
	"tecnoroute/internal/models"
	"tecnoroute/internal/state"

	"github.com/rs/zerolog"
)

var checkoutFields = []string{
	"firstName", "lastName", "email", "phone", "address", "city", "postalCode", "notes",
	"cardNumber", "cardName", "expiryDate", "cvv",
}

func runClient(ctx context.Context, cfg config.Config, log zerolog.Logger, cmd string, args []string) error {
	a, err := app.Init(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer a.Dispose()

	switch cmd {
	case "login":
		if len(args) < 2 {
			return errors.New("uso: login <email> <password>")
		}
		return result(a.Login(ctx, args[0], args[1]), func() { printUser(a.Auth.User()) })
	case "register":
		if len(args) < 3 {
			return errors.New("uso: register <nombre> <email> <password> [telefono]")
		}
		return result(a.Register(ctx, state.NewRegisterRequest(args...)), func() { printUser(a.Auth.User()) })
	case "logout":
		return a.Auth.Logout(ctx)
	case "whoami":
		if !a.Auth.IsAuthenticated() {
			fmt.Println("sin sesión")
			return nil
		}
		printUser(a.Auth.User())
		return nil
	case "products":
		return listProducts(ctx, a, args)
	}

	if !a.Auth.IsAuthenticated() {
		return state.ErrNotAuthenticated
	}

	switch cmd {
	case "cart":
		a.LoadCart(ctx)
		printCart(a.Cart)
	case "add":
		return addToCart(ctx, a, args)
	case "update":
		if len(args) < 2 {
			return errors.New("uso: update <productoId> <cantidad>")
		}
		a.LoadCart(ctx)
		id, qty, err := twoInts(args[0], args[1])
		if err != nil {
			return err
		}
		return cartResult(a.Cart, a.Cart.UpdateQuantity(ctx, id, qty))
	case "remove":
		if len(args) < 1 {
			return errors.New("uso: remove <productoId>")
		}
		a.LoadCart(ctx)
		id, err := strconv.Atoi(args[0])
		if err != nil {
			return err
		}
		return cartResult(a.Cart, a.Cart.RemoveFromCart(ctx, id))
	case "clear":
		a.LoadCart(ctx)
		return cartResult(a.Cart, a.Cart.ClearCart(ctx))
	case "checkout":
		return checkout(ctx, a, args)
	case "orders":
		return listOrders(ctx, a, args)
	case "cycle":
		return cycleOrder(ctx, a, args)
	case "driver":
		return driverPanel(ctx, a, cfg, args)
	case "take":
		if len(args) < 1 {
			return errors.New("uso: take <pedidoId>")
		}
		id, err := strconv.Atoi(args[0])
		if err != nil {
			return err
		}
		if err := a.Driver.Start(ctx); err != nil {
			return err
		}
		if err := a.Driver.TakeOrder(ctx, id); err != nil {
			return errors.New(state.FormatError(err))
		}
		printDriver(a.Driver)
	case "complete":
		if err := a.Driver.Start(ctx); err != nil {
			return err
		}
		if err := a.Driver.CompleteOrder(ctx); err != nil {
			return errors.New(state.FormatError(err))
		}
		printDriver(a.Driver)
	case "stats":
		stats, err := a.Dashboard.Stats(ctx)
		if err != nil {
			return errors.New(state.FormatError(err))
		}
		printStats(stats)
	default:
		fmt.Fprint(os.Stderr, usage)
		return fmt.Errorf("comando desconocido %q", cmd)
	}
	return nil
}

func result(r state.Result, onSuccess func()) error {
	if !r.Success {
		return errors.New(r.Error)
	}
	onSuccess()
	return nil
}

func cartResult(cart *state.CartService, ok bool) error {
	if !ok {
		return errors.New(cart.Error())
	}
	printCart(cart)
	return nil
}

func twoInts(a, b string) (int, int, error) {
	x, err := strconv.Atoi(a)
	if err != nil {
		return 0, 0, err
	}
	y, err := strconv.Atoi(b)
	return x, y, err
}

func listProducts(ctx context.Context, a *app.App, args []string) error {
	category := ""
	if len(args) > 0 {
		category = args[0]
	}
	products, err := a.API.Products.List(ctx, category, "")
	if err != nil {
		return errors.New(state.FormatError(err))
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNOMBRE\tCATEGORÍA\tPRECIO\tSTOCK")
	for _, p := range products {
		fmt.Fprintf(w, "%d\t%s\t%s\t%.2f\t%d\n", p.ID, p.Name, p.Category, p.Price, p.Stock)
	}
	return w.Flush()
}

func addToCart(ctx context.Context, a *app.App, args []string) error {
	if len(args) < 1 {
		return errors.New("uso: add <productoId> [cantidad]")
	}
	id, err := strconv.Atoi(args[0])
	if err != nil {
		return err
	}
	qty := 1
	if len(args) > 1 {
		if qty, err = strconv.Atoi(args[1]); err != nil {
			return err
		}
	}

	product, err := a.API.Products.Get(ctx, id)
	if err != nil {
		return errors.New(state.FormatError(err))
	}
	a.LoadCart(ctx)
	return cartResult(a.Cart, a.Cart.AddToCart(ctx, *product, qty))
}

func checkout(ctx context.Context, a *app.App, args []string) error {
	fs := flag.NewFlagSet("checkout", flag.ContinueOnError)
	values := make(map[string]*string, len(checkoutFields))
	for _, name := range checkoutFields {
		values[name] = fs.String(name, "", name)
	}
	if err := fs.Parse(args); err != nil {
		return err
	}

	a.LoadCart(ctx)
	for _, name := range checkoutFields {
		a.Checkout.SetField(name, *values[name])
	}

	if err := a.Checkout.Submit(ctx); err != nil {
		var verrs state.ValidationErrors
		if errors.As(err, &verrs) {
			for _, fe := range verrs {
				fmt.Fprintf(os.Stderr, "  --%s: %s\n", fe.Field, fe.Message)
			}
			return errors.New("el formulario tiene errores")
		}
		return errors.New(state.FormatError(err))
	}
	fmt.Printf("Pedido confirmado: %s\n", a.Checkout.OrderReference())
	return nil
}

func listOrders(ctx context.Context, a *app.App, args []string) error {
	var status models.OrderStatus
	if len(args) > 0 {
		status = models.OrderStatus(args[0])
	}

	var (
		orders []models.Order
		err    error
	)
	if a.Auth.IsAdmin() {
		orders, err = a.Orders.List(ctx, status)
	} else {
		var query map[string][]string
		if status != "" {
			query = map[string][]string{"estado": {string(status)}}
		}
		orders, err = a.API.Orders.List(ctx, query)
	}
	if err != nil {
		return errors.New(state.FormatError(err))
	}
	printOrders(orders)
	return nil
}

func cycleOrder(ctx context.Context, a *app.App, args []string) error {
	if len(args) < 1 {
		return errors.New("uso: cycle <pedidoId>")
	}
	id, err := strconv.Atoi(args[0])
	if err != nil {
		return err
	}
	order, err := a.API.Orders.Get(ctx, id)
	if err != nil {
		return errors.New(state.FormatError(err))
	}
	updated, err := a.Orders.CycleStatus(ctx, *order)
	if err != nil {
		return errors.New(state.FormatError(err))
	}
	fmt.Printf("%s: %s -> %s\n", updated.OrderNumber, order.Status, updated.Status)
	return nil
}

func driverPanel(ctx context.Context, a *app.App, cfg config.Config, args []string) error {
	fs := flag.NewFlagSet("driver", flag.ContinueOnError)
	watch := fs.Bool("watch", false, "refrescar periódicamente")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if !a.Auth.IsDriver() {
		return errors.New("solo los conductores pueden ver este panel")
	}
	if err := a.Driver.Start(ctx); err != nil {
		return errors.New(state.FormatError(err))
	}
	printDriver(a.Driver)
	if !*watch {
		return nil
	}

	polling := make(chan error, 1)
	go func() { polling <- a.Driver.Run(ctx) }()
	interval := cfg.DriverPollInterval
	if interval <= 0 {
		interval = 30 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case err := <-polling:
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil
			}
			return fmt.Errorf("driver polling stopped: %w", err)
		case <-ticker.C:
			printDriver(a.Driver)
		}
	}
}

func printUser(u *models.User) {
	if u == nil {
		return
	}
	fmt.Printf("%s <%s> rol=%s id=%d\n", u.Username, u.Email, u.Role, u.ID)
}

func printCart(cart *state.CartService) {
	items := cart.Items()
	if len(items) == 0 {
		fmt.Println("El carrito está vacío")
		return
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "PRODUCTO\tNOMBRE\tCANT.\tSUBTOTAL")
	for _, it := range items {
		fmt.Fprintf(w, "%d\t%s\t%d\t%.2f\n", it.ProductID, it.Name, it.Quantity, it.Subtotal())
	}
	fmt.Fprintf(w, "\t\t%d\t%.2f\n", cart.ItemsCount(), cart.Total())
	w.Flush()
}

func printOrders(orders []models.Order) {
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNÚMERO\tESTADO\tTOTAL\tCONDUCTOR\tFECHA")
	for _, o := range orders {
		driver := "-"
		if o.Driver != nil {
			driver = o.Driver.Name
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%.2f\t%s\t%s\n", o.ID, o.OrderNumber, o.Status, o.Total, driver, o.CreatedAt.Format("2006-01-02 15:04"))
	}
	w.Flush()
}

func printDriver(d *state.DriverService) {
	if msg := d.Error(); msg != "" {
		fmt.Println("aviso:", msg)
	}
	if active := d.Active(); active != nil {
		fmt.Printf("Pedido activo: %s (%s) %s\n", active.OrderNumber, active.Status, active.ShippingAddress)
	} else {
		fmt.Println("Sin pedido activo")
	}
	fmt.Printf("Pedidos pendientes: %d\n", len(d.Pending()))
	printOrders(d.Pending())
}

func printStats(s *models.DashboardStats) {
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "Pedidos\t%d\n", s.Orders.Total)
	fmt.Fprintf(w, "Pendientes\t%d\n", s.Orders.Pending)
	fmt.Fprintf(w, "Entregados\t%d\n", s.Orders.Delivered)
	fmt.Fprintf(w, "Ingresos\t%.2f\n", s.Orders.Revenue)
	fmt.Fprintf(w, "Clientes\t%d\n", s.Clients)
	fmt.Fprintf(w, "Conductores\t%d\n", s.Drivers)
	fmt.Fprintf(w, "Vehículos\t%d\n", s.Vehicles)
	fmt.Fprintf(w, "Rutas activas\t%d\n", s.ActiveRoutes)
	w.Flush()
}
