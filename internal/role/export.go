package role

import (
	"fmt"
	"io"

	"github.com/frahmantamala/chitfund-crm/internal/core/permission"
	"github.com/frahmantamala/chitfund-crm/internal/navigation"
	"github.com/xuri/excelize/v2"
)

const MatrixSheet = "Permissions"

// ExportMatrix writes one row per role and one column per entity.action pair
// of the tree's nodes. Granted cells hold "yes" and the rest are left empty.
func ExportMatrix(w io.Writer, roles []*Role, tree navigation.Tree) error {
	entities := tree.IDs()
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", MatrixSheet); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}

	header := []interface{}{"Role", "Status", "System", "Users"}
	for _, entity := range entities {
		for _, action := range permission.Actions {
			header = append(header, entity+"."+string(action))
		}
	}
	if err := f.SetSheetRow(MatrixSheet, "A1", &header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("create header style: %w", err)
	}
	if err := f.SetRowStyle(MatrixSheet, 1, 1, bold); err != nil {
		return fmt.Errorf("style header: %w", err)
	}

	for i, r := range roles {
		set := r.PermissionSet()
		system := ""
		if r.IsSystem {
			system = "yes"
		}
		row := []interface{}{r.Name, string(r.Status), system, r.UserCount}
		for _, entity := range entities {
			for _, action := range permission.Actions {
				cell := ""
				if tree.Grants(set, entity, action) {
					cell = "yes"
				}
				row = append(row, cell)
			}
		}

		start, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(MatrixSheet, start, &row); err != nil {
			return fmt.Errorf("write role %q: %w", r.Name, err)
		}
	}

	if err := f.SetPanes(MatrixSheet, &excelize.Panes{
		Freeze:      true,
		XSplit:      1,
		YSplit:      1,
		TopLeftCell: "B2",
		ActivePane:  "bottomRight",
	}); err != nil {
		return fmt.Errorf("freeze panes: %w", err)
	}

	return f.Write(w)
}
