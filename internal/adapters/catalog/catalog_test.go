package catalog_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/apsara-ai/derma/internal/adapters/catalog"
	"github.com/apsara-ai/derma/internal/domain/model"
	"github.com/apsara-ai/derma/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	// Initialize logging for tests
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

func writeCatalog(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "products.csv")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write catalog fixture: %v", err)
	}
	return path
}

const goodCatalog = `id,name,brand,category,concerns,skin_types,price,url
p1,Clearing Gel Cleanser,Dermlab,cleanser,acne|pores,oily|combination,14.99,https://example.com/p1
p2,Ceramide Barrier Cream,Dermlab,moisturizer,dryness,dry,22.50,https://example.com/p2
p3,Daily SPF 50,Sunco,sunscreen,,,,https://example.com/p3
`

func TestLoader_Load(t *testing.T) {
	Convey("Given a well-formed catalog file", t, func() {
		ctx := context.Background()
		loader := catalog.New()

		Convey("When it is loaded", func() {
			products, err := loader.Load(ctx, writeCatalog(t, goodCatalog))

			Convey("Then rows with valid prices parse", func() {
				So(err, ShouldBeNil)
				So(products, ShouldHaveLength, 2)
			})

			Convey("Then pipe-separated lists split into slices", func() {
				So(products[0].ID, ShouldEqual, "p1")
				So(products[0].ConcernsAddressed, ShouldResemble, []string{model.ConcernAcne, model.ConcernPores})
				So(products[0].SkinTypes, ShouldResemble, []string{model.SkinTypeOily, model.SkinTypeCombination})
			})

			Convey("Then prices parse as exact decimals", func() {
				So(products[1].Price.String(), ShouldEqual, "22.5")
			})
		})
	})

	Convey("Given an empty-list skin_types cell", t, func() {
		ctx := context.Background()
		loader := catalog.New()

		csv := `id,name,brand,category,concerns,skin_types,price,url
p1,Universal Serum,Lab,serum,dullness,,9.99,
`
		products, err := loader.Load(ctx, writeCatalog(t, csv))

		Convey("Then the product suits every skin type", func() {
			So(err, ShouldBeNil)
			So(products, ShouldHaveLength, 1)
			So(products[0].SkinTypes, ShouldBeEmpty)
			So(products[0].SuitsSkinType(model.SkinTypeSensitive), ShouldBeTrue)
		})
	})

	Convey("Given a missing catalog file", t, func() {
		ctx := context.Background()
		loader := catalog.New()

		products, err := loader.Load(ctx, filepath.Join(t.TempDir(), "absent.csv"))

		Convey("Then the catalog is empty, not an error", func() {
			So(err, ShouldBeNil)
			So(products, ShouldBeEmpty)
		})
	})

	Convey("Given a file with a wrong header", t, func() {
		ctx := context.Background()
		loader := catalog.New()

		_, err := loader.Load(ctx, writeCatalog(t, "sku,title\nx,y\n"))

		Convey("Then loading fails with ErrBadHeader", func() {
			So(errors.Is(err, catalog.ErrBadHeader), ShouldBeTrue)
		})
	})

	Convey("Given a malformed row among valid ones", t, func() {
		ctx := context.Background()
		loader := catalog.New()

		csv := `id,name,brand,category,concerns,skin_types,price,url
p1,Good Product,Lab,serum,acne,,12.00,
p2,Bad Price,Lab,serum,acne,,not-a-number,
,No ID,Lab,serum,acne,,5.00,
p4,Another Good,Lab,toner,redness,,8.00,
`
		products, err := loader.Load(ctx, writeCatalog(t, csv))

		Convey("Then bad rows are skipped and good rows survive", func() {
			So(err, ShouldBeNil)
			So(products, ShouldHaveLength, 2)
			So(products[0].ID, ShouldEqual, "p1")
			So(products[1].ID, ShouldEqual, "p4")
		})
	})
}
