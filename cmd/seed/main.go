// Command seed loads demo accounts, a menu, the default slot template and a
// few sample orders for one day.
package main

import (
	"context"
	"flag"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/iliyamo/canteen-ordering/internal/config"
	"github.com/iliyamo/canteen-ordering/internal/database"
	"github.com/iliyamo/canteen-ordering/internal/logger"
	"github.com/iliyamo/canteen-ordering/internal/model"
	"github.com/iliyamo/canteen-ordering/internal/repository"
	"github.com/iliyamo/canteen-ordering/internal/service"
)

const demoPassword = "test123"

var students = []repository.NewUser{
	{Name: "Hari", Phone: "9000000001", Roll: "STU001"},
	{Name: "Anjali", Phone: "9000000002", Roll: "STU002"},
	{Name: "Ravi", Phone: "9000000003", Roll: "STU003"},
	{Name: "Priya", Phone: "9000000004", Roll: "STU004"},
	{Name: "Amit", Phone: "9000000005", Roll: "STU005"},
}

var menuItems = []model.MenuItem{
	{Name: "Meal", PriceCents: 4000, MealType: model.MealLunch, MaxPerDay: model.DefaultMaxPerDay},
	{Name: "Chai", PriceCents: 500, MealType: model.MealSnack, MaxPerDay: model.DefaultMaxPerDay},
	{Name: "Snack", PriceCents: 1500, MealType: model.MealSnack, MaxPerDay: model.DefaultMaxPerDay},
}

// defaultTemplate is six ten-minute lunch slots from 13:00 and one snack slot.
func defaultTemplate() []model.SlotTemplateEntry {
	var out []model.SlotTemplateEntry
	start := time.Date(0, 1, 1, 13, 0, 0, 0, time.UTC)
	for i := 0; i < 6; i++ {
		s := start.Add(time.Duration(i*10) * time.Minute)
		out = append(out, model.SlotTemplateEntry{
			Start:    s.Format("15:04"),
			End:      s.Add(10 * time.Minute).Format("15:04"),
			MealType: model.MealLunch,
			Capacity: model.DefaultSlotCapacity,
		})
	}
	return append(out, model.SlotTemplateEntry{Start: "16:00", End: "16:30", MealType: model.MealSnack, Capacity: 10})
}

type sampleOrder struct {
	roll  string
	items []string
	slot  string
}

var sampleOrders = []sampleOrder{
	{roll: "STU001", items: []string{"Meal", "Chai"}, slot: "1:00 PM"},
	{roll: "STU002", items: []string{"Meal"}, slot: "1:10 PM"},
	{roll: "STU003", items: []string{"Snack", "Chai"}, slot: "1:20 PM"},
}

func main() {
	date := flag.String("date", "", "day to seed (YYYY-MM-DD, default today)")
	withOrders := flag.Bool("orders", true, "place sample orders")
	flag.Parse()

	cfg := config.Load()
	log := logger.New(cfg.Env)
	defer func() { _ = log.Sync() }()

	if err := run(cfg, log, *date, *withOrders); err != nil {
		log.Fatal("seed failed", zap.Error(err))
	}
}

func run(cfg config.Config, log *zap.Logger, date string, withOrders bool) error {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	if date == "" {
		date = model.Today(time.Now(), cfg.Location)
	}
	date, err := model.ParseDate(date)
	if err != nil {
		return err
	}

	db, err := database.Open(cfg)
	if err != nil {
		return err
	}
	defer db.Close()
	if err := database.Migrate(ctx, db, log); err != nil {
		return err
	}

	users := repository.NewUserRepo(db)
	admin := repository.NewUser{Name: "Chandrettan", Phone: "9999999999", Roll: "ADMIN", Password: demoPassword, Role: model.RoleAdmin}
	if err := users.Upsert(ctx, admin, cfg.BcryptCost); err != nil {
		return fmt.Errorf("seed admin: %w", err)
	}
	for _, s := range students {
		s.Password = demoPassword
		s.Role = model.RoleStudent
		if err := users.Upsert(ctx, s, cfg.BcryptCost); err != nil {
			return fmt.Errorf("seed student %s: %w", s.Roll, err)
		}
	}
	log.Info("users seeded", zap.Int("students", len(students)))

	if _, err := repository.NewMenuRepo(db).Upsert(ctx, date, menuItems); err != nil {
		return fmt.Errorf("seed menu: %w", err)
	}
	log.Info("menu seeded", zap.String("date", date), zap.Int("items", len(menuItems)))

	slots := service.NewSlotService(repository.NewSlotRepo(db), repository.NewSlotTemplateRepo(db), log)
	if _, err := slots.ReplaceTemplate(ctx, defaultTemplate()); err != nil {
		return fmt.Errorf("seed template: %w", err)
	}
	if _, err := slots.MaterializeDay(ctx, date); err != nil {
		return fmt.Errorf("materialize %s: %w", date, err)
	}

	if !withOrders {
		return nil
	}
	alloc := service.NewSlotAllocator(repository.NewAllocationRepo(db), nil, log)
	payLater := false
	for _, o := range sampleOrders {
		u, err := users.GetByPhoneOrRoll(ctx, "", o.roll)
		if err != nil {
			return fmt.Errorf("load %s: %w", o.roll, err)
		}
		res, err := alloc.Allocate(ctx, service.AllocationRequest{
			StudentID:      u.ID,
			Date:           date,
			PreferredStart: o.slot,
			Items:          o.items,
			PayLater:       &payLater,
		})
		if err != nil {
			return fmt.Errorf("order for %s: %w", o.roll, err)
		}
		if res.Kind != service.Confirmed {
			log.Warn("sample order not placed", zap.String("roll", o.roll), zap.String("message", res.Message))
		}
	}
	log.Info("sample orders placed", zap.Int("orders", len(sampleOrders)))
	return nil
}
