package services

import (
	"context"
	"fmt"
	"testing"

	"github.com/cucumber/godog"
	"github.com/go-faster/errors"

	"artisan-market/internal/models"
	"artisan-market/internal/pricing"
	"artisan-market/internal/storage"
)

var errorsByName = map[string]error{
	"InvalidQuantity":  ErrInvalidQuantity,
	"ItemNotFound":     ErrItemNotFound,
	"InvalidPromoCode": ErrInvalidPromoCode,
	"PersistenceError": ErrPersistence,
}

type cartFeature struct {
	mem  *storage.MemoryStore
	cart *CartStore
	err  error
}

func (f *cartFeature) anEmptyCart() error {
	f.mem = storage.NewMemoryStore()
	f.cart = NewCartStore(f.mem)
	f.err = nil
	_, err := f.cart.Load(context.Background())
	return err
}

func (f *cartFeature) theStoreRejectsWrites() error {
	f.mem.FailWrites(errors.New("store unavailable"))
	return nil
}

func (f *cartFeature) theStoreRejectsWishlistWrites() error {
	f.mem.FailWrites(errors.New("store unavailable"), storage.KeyWishlist)
	return nil
}

func (f *cartFeature) iAdd(qty int64, productID string, price int64) error {
	_, f.err = f.cart.AddItem(context.Background(), models.ProductID(productID), price, qty, "",
		models.ItemDetails{Name: "Product " + productID, InStock: true})
	return nil
}

func (f *cartFeature) iSetQuantity(lineID string, qty int64) error {
	_, f.err = f.cart.UpdateQuantity(context.Background(), lineID, qty)
	return nil
}

func (f *cartFeature) iRemove(lineID string) error {
	f.err = f.cart.RemoveItem(context.Background(), lineID)
	return nil
}

func (f *cartFeature) iApplyPromo(code string) error {
	_, f.err = f.cart.ApplyPromoCode(context.Background(), code, pricing.DefaultPromoTable())
	return nil
}

func (f *cartFeature) iClear() error {
	f.err = f.cart.Clear(context.Background())
	return nil
}

func (f *cartFeature) iMoveToWishlist(lineID string) error {
	f.err = f.cart.MoveToWishlist(context.Background(), lineID)
	return nil
}

func (f *cartFeature) iReload() error {
	reopened, err := OpenCartStore(context.Background(), f.mem)
	if err != nil {
		return err
	}
	f.cart = reopened
	return nil
}

func (f *cartFeature) theOperationFailsWith(name string) error {
	want, ok := errorsByName[name]
	if !ok {
		return fmt.Errorf("unknown error kind %q", name)
	}
	if !errors.Is(f.err, want) {
		return fmt.Errorf("expected %s, got %v", name, f.err)
	}
	return nil
}

func (f *cartFeature) theOperationSucceeds() error {
	if f.err != nil {
		return fmt.Errorf("unexpected error: %w", f.err)
	}
	return nil
}

func (f *cartFeature) theCartHasLines(n int) error {
	if got := len(f.cart.Items()); got != n {
		return fmt.Errorf("expected %d lines, got %d", n, got)
	}
	return nil
}

func (f *cartFeature) theQuantityIs(lineID string, qty int64) error {
	item, ok := f.cart.Item(lineID)
	if !ok {
		return fmt.Errorf("line %q not in cart", lineID)
	}
	if item.Quantity != qty {
		return fmt.Errorf("expected quantity %d, got %d", qty, item.Quantity)
	}
	return nil
}

func (f *cartFeature) theAmountIs(field string, want int64) error {
	totals := f.cart.Totals()
	got := map[string]int64{
		"subtotal": totals.Subtotal,
		"tax":      totals.Tax,
		"shipping": totals.Shipping,
		"discount": totals.Discount,
		"total":    totals.Total,
	}[field]
	if got != want {
		return fmt.Errorf("expected %s %d, got %d", field, want, got)
	}
	return nil
}

func (f *cartFeature) theCartIsEmpty() error {
	if !f.cart.IsEmpty() {
		return fmt.Errorf("expected empty cart, got %d lines", len(f.cart.Items()))
	}
	return nil
}

func (f *cartFeature) theWishlistHolds(n int) error {
	f.mem.FailWrites(nil)
	items, err := f.cart.Wishlist(context.Background())
	if err != nil {
		return err
	}
	if len(items) != n {
		return fmt.Errorf("expected %d wishlist items, got %d", n, len(items))
	}
	return nil
}

func InitializeScenario(ctx *godog.ScenarioContext) {
	f := &cartFeature{}

	ctx.Step(`^an empty cart$`, f.anEmptyCart)
	ctx.Step(`^the store rejects writes$`, f.theStoreRejectsWrites)
	ctx.Step(`^the store rejects writes to the wishlist$`, f.theStoreRejectsWishlistWrites)

	ctx.Step(`^I add (\d+) of product "([^"]*)" at (\d+)$`, f.iAdd)
	ctx.Step(`^I set the quantity of "([^"]*)" to (-?\d+)$`, f.iSetQuantity)
	ctx.Step(`^I remove "([^"]*)"$`, f.iRemove)
	ctx.Step(`^I apply promo code "([^"]*)"$`, f.iApplyPromo)
	ctx.Step(`^I clear the cart$`, f.iClear)
	ctx.Step(`^I move "([^"]*)" to the wishlist$`, f.iMoveToWishlist)
	ctx.Step(`^I reload the cart$`, f.iReload)

	ctx.Step(`^the operation fails with "([^"]*)"$`, f.theOperationFailsWith)
	ctx.Step(`^the operation succeeds$`, f.theOperationSucceeds)
	ctx.Step(`^the cart has (\d+) lines?$`, f.theCartHasLines)
	ctx.Step(`^the quantity of "([^"]*)" is (\d+)$`, f.theQuantityIs)
	ctx.Step(`^the (subtotal|tax|shipping|discount|total) is (\d+)$`, f.theAmountIs)
	ctx.Step(`^the cart is empty$`, f.theCartIsEmpty)
	ctx.Step(`^the wishlist holds (\d+) items?$`, f.theWishlistHolds)
}

func TestFeatures(t *testing.T) {
	suite := godog.TestSuite{
		ScenarioInitializer: InitializeScenario,
		Options: &godog.Options{
			Format:   "pretty",
			Paths:    []string{"features/cart.feature"},
			TestingT: t,
		},
	}

	if suite.Run() != 0 {
		t.Fatal("non-zero status returned, failed to run feature tests")
	}
}
