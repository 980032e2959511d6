package service

import (
	"fmt"
	"strings"

	"github.com/johnfercher/maroto/v2"
	"github.com/johnfercher/maroto/v2/pkg/components/col"
	"github.com/johnfercher/maroto/v2/pkg/components/text"
	"github.com/johnfercher/maroto/v2/pkg/config"
	"github.com/johnfercher/maroto/v2/pkg/consts/align"
	"github.com/johnfercher/maroto/v2/pkg/consts/fontstyle"
	"github.com/johnfercher/maroto/v2/pkg/props"
	invoicedomain "github.com/posadahq/posada/internal/invoice/domain"
)

func documentTitle(docType invoicedomain.DocumentType) string {
	if docType == invoicedomain.DocumentFactura {
		return "FACTURA ELECTRONICA"
	}
	return "BOLETA DE VENTA ELECTRONICA"
}

func renderPDF(invoice invoicedomain.Invoice) ([]byte, error) {
	cfg := config.NewBuilder().
		WithPageNumber(props.PageNumber{
			Pattern: "Page {current} of {total}",
			Place:   props.RightBottom,
		}).
		Build()

	m := maroto.New(cfg)

	m.AddRow(12,
		text.NewCol(12, documentTitle(invoice.DocumentType), props.Text{
			Size:  16,
			Style: fontstyle.Bold,
			Align: align.Center,
		}),
	)
	m.AddRow(8,
		text.NewCol(12, fmt.Sprintf("%s-%08d", invoice.Series, invoice.Number), props.Text{
			Size:  12,
			Style: fontstyle.Bold,
			Align: align.Center,
		}),
	)

	m.AddRow(25,
		col.New(6).Add(
			text.New("Cliente", props.Text{Style: fontstyle.Bold}),
			text.New(invoice.CustomerName, props.Text{Top: 5}),
			text.New(fmt.Sprintf("%s %s",
				strings.ToUpper(invoice.CustomerDocumentType),
				invoice.CustomerDocumentNumber,
			), props.Text{Top: 10}),
		),
		col.New(6).Add(
			text.New("Emision: "+invoice.CreatedAt.Format("2006-01-02"), props.Text{Top: 0}),
			text.New("Moneda: "+invoice.Currency, props.Text{Top: 5}),
		),
	)

	m.AddRow(10,
		text.NewCol(8, "Concepto", props.Text{Style: fontstyle.Bold, Size: 9}),
		text.NewCol(4, "Importe", props.Text{Style: fontstyle.Bold, Size: 9, Align: align.Right}),
	)
	m.AddRow(10,
		text.NewCol(8, "Servicio de hospedaje", props.Text{Size: 9}),
		text.NewCol(4, invoice.Total.StringFixed(2), props.Text{Size: 9, Align: align.Right}),
	)

	totals := []struct {
		label string
		value string
	}{
		{"Op. Gravada", invoice.OpGravado.StringFixed(2)},
		{"IGV (18%)", invoice.IGV.StringFixed(2)},
		{"Op. Exonerada", invoice.OpExonerado.StringFixed(2)},
		{"Op. Inafecta", invoice.OpInafecto.StringFixed(2)},
		{"Descuentos", invoice.Descuentos.StringFixed(2)},
	}
	for _, row := range totals {
		m.AddRow(8,
			col.New(6),
			text.NewCol(3, row.label, props.Text{Size: 9}),
			text.NewCol(3, row.value, props.Text{Size: 9, Align: align.Right}),
		)
	}
	m.AddRow(10,
		col.New(6),
		text.NewCol(3, "TOTAL", props.Text{Style: fontstyle.Bold, Size: 10}),
		text.NewCol(3, invoice.Currency+" "+invoice.Total.StringFixed(2), props.Text{
			Style: fontstyle.Bold,
			Size:  10,
			Align: align.Right,
		}),
	)

	doc, err := m.Generate()
	if err != nil {
		return nil, err
	}
	return doc.GetBytes(), nil
}
