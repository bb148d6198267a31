package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/turtacn/molscene/internal/domain/geometry"
	stypes "github.com/turtacn/molscene/pkg/types/structure"
)

// ConformationEntry is the resolved sweep setup of one conformation.
type ConformationEntry struct {
	Conformation string  `json:"conformation"`
	CrossSection string  `json:"cross_section"`
	Shape        string  `json:"shape,omitempty"`
	Steps        int     `json:"steps"`
	Width        float64 `json:"width"`
	Thickness    float64 `json:"thickness"`
	Radius       float64 `json:"radius"`
}

// FormEntry lists one ribbon form and its resolved parameters.
type FormEntry struct {
	Form          string              `json:"form"`
	Description   string              `json:"description"`
	Ribbon        bool                `json:"ribbon"`
	Conformations []ConformationEntry `json:"conformations"`
}

// FormsReport is the output of the forms command.
type FormsReport struct {
	Smoothing bool        `json:"smoothing"`
	Forms     []FormEntry `json:"forms"`
}

// NewFormsCmd lists the supported ribbon forms.
func NewFormsCmd() *cobra.Command {
	var smoothing bool

	cmd := &cobra.Command{
		Use:   "forms",
		Short: "List ribbon forms and their per-conformation parameters",
		RunE: func(cmd *cobra.Command, args []string) error {
			report, err := buildFormsReport(smoothing)
			if err != nil {
				return err
			}
			return PrintResult(cmd, report)
		},
	}
	cmd.Flags().BoolVar(&smoothing, "smoothing", true, "resolve parameters with smoothing enabled")
	return cmd
}

func buildFormsReport(smoothing bool) (*FormsReport, error) {
	report := &FormsReport{Smoothing: smoothing}
	for _, form := range geometry.AllRibbonForms {
		params, err := geometry.ResolveParameters(geometry.RibbonConfig{Form: form, Smoothing: smoothing})
		if err != nil {
			return nil, err
		}
		entry := FormEntry{Form: string(form), Description: form.Description(), Ribbon: params.Ribbon}
		for _, conf := range stypes.AllConformations {
			if conf == stypes.ConformationUndefined {
				continue
			}
			cp := params.For(conf)
			entry.Conformations = append(entry.Conformations, ConformationEntry{
				Conformation: string(conf),
				CrossSection: string(cp.CrossSection),
				Shape:        string(cp.Shape),
				Steps:        cp.Steps,
				Width:        cp.Dimensions.Width,
				Thickness:    cp.Dimensions.Thickness,
				Radius:       cp.Dimensions.Radius,
			})
		}
		report.Forms = append(report.Forms, entry)
	}
	return report, nil
}

func (r *FormsReport) String() string {
	var sb strings.Builder
	for _, f := range r.Forms {
		fmt.Fprintf(&sb, "%s (%s)\n", f.Form, f.Description)
		for _, c := range f.Conformations {
			shape := ""
			if c.Shape != "" {
				shape = " " + c.Shape
			}
			fmt.Fprintf(&sb, "  %-7s %s%s steps=%d\n", c.Conformation, c.CrossSection, shape, c.Steps)
		}
	}
	return sb.String()
}

func (r *FormsReport) TableHeaders() []string {
	return []string{"Form", "Conformation", "Cross Section", "Shape", "Steps", "Width", "Thickness", "Radius"}
}

func (r *FormsReport) TableRows() [][]string {
	var rows [][]string
	for _, f := range r.Forms {
		for _, c := range f.Conformations {
			rows = append(rows, []string{
				f.Form,
				c.Conformation,
				c.CrossSection,
				c.Shape,
				strconv.Itoa(c.Steps),
				strconv.FormatFloat(c.Width, 'g', -1, 64),
				strconv.FormatFloat(c.Thickness, 'g', -1, 64),
				strconv.FormatFloat(c.Radius, 'g', -1, 64),
			})
		}
	}
	return rows
}
