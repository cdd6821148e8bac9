// Package board manages kanban boards and their status columns. Boards are
// created lazily with a default column set; column status and position are
// each unique within a board, and every read comes back in position order.
package board

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/cadencehq/cadence/internal/ident"
	"github.com/cadencehq/cadence/internal/models"
	"gorm.io/gorm"
)

// ColumnSpec holds parameters for adding a column.
type ColumnSpec struct {
	Name     string
	Status   string
	Position int
	Color    string
}

// ColumnPatch holds partial updates for a column. Nil fields are untouched.
type ColumnPatch struct {
	Name     *string
	Status   *string
	Position *int
	Color    *string
}

// defaultProjectColumns is the column set created for a new project board.
var defaultProjectColumns = []ColumnSpec{
	{Name: "Backlog", Status: "backlog", Position: 0, Color: "#8B8B8B"},
	{Name: "To Do", Status: "todo", Position: 1, Color: "#FF6B6B"},
	{Name: "In Progress", Status: "in_progress", Position: 2, Color: "#4ECDC4"},
	{Name: "In Review", Status: "in_review", Position: 3, Color: "#45B7D1"},
	{Name: "Done", Status: "done", Position: 4, Color: "#96CEB4"},
}

// defaultSprintColumns is the column set created for a global sprint board.
var defaultSprintColumns = []ColumnSpec{
	{Name: "To Do", Status: "todo", Position: 1, Color: "#FF6B6B"},
	{Name: "In Progress", Status: "in_progress", Position: 2, Color: "#4ECDC4"},
	{Name: "Impediment", Status: "impediment", Position: 3, Color: "#FF9F43"},
	{Name: "Done", Status: "done", Position: 4, Color: "#96CEB4"},
}

// ForProject returns the project's board, creating it with the default
// five-column set on first access.
func ForProject(db *gorm.DB, projectID string) (*models.Board, error) {
	pid := ident.Resolve(projectID)
	var b models.Board
	err := db.Where("project_id = ? AND is_deleted = ?", pid, false).First(&b).Error
	if err == nil {
		return &b, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("board: get board for project %s: %w", projectID, err)
	}
	return createBoard(db, models.Board{ProjectID: pid, Name: "Board"}, defaultProjectColumns)
}

// ForSprint returns the global sprint's board, creating it with the default
// four-column set on first access.
func ForSprint(db *gorm.DB, sprintID string) (*models.Board, error) {
	sid := ident.Resolve(sprintID)
	var b models.Board
	err := db.Where("sprint_id = ? AND is_deleted = ?", sid, false).First(&b).Error
	if err == nil {
		return &b, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("board: get board for sprint %s: %w", sprintID, err)
	}
	return createBoard(db, models.Board{SprintID: sid, Name: "Sprint Board"}, defaultSprintColumns)
}

func createBoard(db *gorm.DB, b models.Board, cols []ColumnSpec) (*models.Board, error) {
	id, err := ident.NewID("brd")
	if err != nil {
		return nil, fmt.Errorf("board: %w", err)
	}
	b.ID = id
	if err := db.Create(&b).Error; err != nil {
		return nil, fmt.Errorf("board: create board: %w", err)
	}
	for _, c := range cols {
		col := models.BoardColumn{
			BoardID:  b.ID,
			Name:     c.Name,
			Status:   c.Status,
			Position: c.Position,
			Color:    c.Color,
		}
		if err := db.Create(&col).Error; err != nil {
			return nil, fmt.Errorf("board: create column %s: %w", c.Name, err)
		}
	}
	return &b, nil
}

// Columns returns the project board's columns in position order, creating
// the board first if needed.
func Columns(db *gorm.DB, projectID string) ([]models.BoardColumn, error) {
	b, err := ForProject(db, projectID)
	if err != nil {
		return nil, err
	}
	return boardColumns(db, b.ID)
}

// SprintColumns returns the global sprint board's columns in position order.
func SprintColumns(db *gorm.DB, sprintID string) ([]models.BoardColumn, error) {
	b, err := ForSprint(db, sprintID)
	if err != nil {
		return nil, err
	}
	return boardColumns(db, b.ID)
}

func boardColumns(db *gorm.DB, boardID string) ([]models.BoardColumn, error) {
	var cols []models.BoardColumn
	if err := db.Where("board_id = ?", boardID).Order("position ASC").Find(&cols).Error; err != nil {
		return nil, fmt.Errorf("board: columns of %s: %w", boardID, err)
	}
	return cols, nil
}

// AddColumn appends a column to the project board. Status and position must
// both be free; conflicts fail before any write.
func AddColumn(db *gorm.DB, projectID string, spec ColumnSpec) (*models.BoardColumn, error) {
	if spec.Name == "" {
		return nil, fmt.Errorf("board: column name is required: %w", models.ErrValidation)
	}
	if spec.Status == "" {
		return nil, fmt.Errorf("board: column status is required: %w", models.ErrValidation)
	}
	b, err := ForProject(db, projectID)
	if err != nil {
		return nil, err
	}
	cols, err := boardColumns(db, b.ID)
	if err != nil {
		return nil, err
	}
	for _, c := range cols {
		if c.Status == spec.Status {
			return nil, fmt.Errorf("board: status %q already on board: %w", spec.Status, models.ErrValidation)
		}
		if c.Position == spec.Position {
			return nil, fmt.Errorf("board: position %d already on board: %w", spec.Position, models.ErrValidation)
		}
	}
	col := models.BoardColumn{
		BoardID:  b.ID,
		Name:     spec.Name,
		Status:   spec.Status,
		Position: spec.Position,
		Color:    spec.Color,
	}
	if err := db.Create(&col).Error; err != nil {
		return nil, fmt.Errorf("board: add column: %w", err)
	}
	return &col, nil
}

// UpdateColumn patches the column at the given position. Uniqueness checks
// exclude the column being updated.
func UpdateColumn(db *gorm.DB, projectID string, position int, patch ColumnPatch) (*models.BoardColumn, error) {
	b, err := ForProject(db, projectID)
	if err != nil {
		return nil, err
	}
	cols, err := boardColumns(db, b.ID)
	if err != nil {
		return nil, err
	}
	target, err := columnAt(cols, position)
	if err != nil {
		return nil, err
	}

	updates := map[string]interface{}{}
	if patch.Name != nil {
		updates["name"] = *patch.Name
	}
	if patch.Color != nil {
		updates["color"] = *patch.Color
	}
	if patch.Status != nil {
		for _, c := range cols {
			if c.ID != target.ID && c.Status == *patch.Status {
				return nil, fmt.Errorf("board: status %q already on board: %w", *patch.Status, models.ErrValidation)
			}
		}
		updates["status"] = *patch.Status
	}
	if patch.Position != nil {
		for _, c := range cols {
			if c.ID != target.ID && c.Position == *patch.Position {
				return nil, fmt.Errorf("board: position %d already on board: %w", *patch.Position, models.ErrValidation)
			}
		}
		updates["position"] = *patch.Position
	}
	if len(updates) == 0 {
		return target, nil
	}
	if err := db.Model(&models.BoardColumn{}).Where("id = ?", target.ID).Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("board: update column at %d: %w", position, err)
	}
	var out models.BoardColumn
	if err := db.First(&out, target.ID).Error; err != nil {
		return nil, fmt.Errorf("board: reread column %d: %w", target.ID, err)
	}
	return &out, nil
}

// DeleteColumn removes the column at the given position. Remaining columns
// keep their positions.
func DeleteColumn(db *gorm.DB, projectID string, position int) error {
	b, err := ForProject(db, projectID)
	if err != nil {
		return err
	}
	cols, err := boardColumns(db, b.ID)
	if err != nil {
		return err
	}
	target, err := columnAt(cols, position)
	if err != nil {
		return err
	}
	if err := db.Delete(&models.BoardColumn{}, target.ID).Error; err != nil {
		return fmt.Errorf("board: delete column at %d: %w", position, err)
	}
	return nil
}

// Reorder reassigns column positions from a permutation of the current
// positions: the column currently at order[i] moves to position i. Every
// current position must appear exactly once or nothing changes.
func Reorder(db *gorm.DB, projectID string, order []int) ([]models.BoardColumn, error) {
	b, err := ForProject(db, projectID)
	if err != nil {
		return nil, err
	}
	cols, err := boardColumns(db, b.ID)
	if err != nil {
		return nil, err
	}
	if len(order) != len(cols) {
		return nil, fmt.Errorf("board: reorder names %d positions, board has %d: %w",
			len(order), len(cols), models.ErrValidation)
	}

	byPos := make(map[int]models.BoardColumn, len(cols))
	for _, c := range cols {
		byPos[c.Position] = c
	}
	seen := make(map[int]bool, len(order))
	for _, pos := range order {
		if _, ok := byPos[pos]; !ok {
			return nil, fmt.Errorf("board: reorder references unknown position %d: %w", pos, models.ErrValidation)
		}
		if seen[pos] {
			return nil, fmt.Errorf("board: reorder repeats position %d: %w", pos, models.ErrValidation)
		}
		seen[pos] = true
	}

	err = db.Transaction(func(tx *gorm.DB) error {
		// Park every column on a shifted position first so the (board_id,
		// position) pairs never collide mid-rewrite.
		for i, pos := range order {
			if err := tx.Model(&models.BoardColumn{}).Where("id = ?", byPos[pos].ID).
				Update("position", -(i + 1)).Error; err != nil {
				return fmt.Errorf("board: park column %d: %w", byPos[pos].ID, err)
			}
		}
		for i, pos := range order {
			if err := tx.Model(&models.BoardColumn{}).Where("id = ?", byPos[pos].ID).
				Update("position", i).Error; err != nil {
				return fmt.Errorf("board: move column %d: %w", byPos[pos].ID, err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return boardColumns(db, b.ID)
}

func columnAt(cols []models.BoardColumn, position int) (*models.BoardColumn, error) {
	for i := range cols {
		if cols[i].Position == position {
			return &cols[i], nil
		}
	}
	return nil, fmt.Errorf("board: no column at position %d: %w", position, models.ErrNotFound)
}

// ColumnGroup pairs a column with the issues whose status lands in it.
type ColumnGroup struct {
	Column models.BoardColumn `json:"column"`
	Issues []models.Issue     `json:"issues"`
}

// Group distributes issues into columns by status. Matching strips every
// non-alphanumeric and lower-cases both sides, so "To Do", "to_do" and
// "todo" land in the same column. Newest first within a column; issues that
// match no column are left out.
func Group(cols []models.BoardColumn, issues []models.Issue) []ColumnGroup {
	groups := make([]ColumnGroup, len(cols))
	index := make(map[string]int, len(cols))
	for i, c := range cols {
		groups[i] = ColumnGroup{Column: c, Issues: []models.Issue{}}
		index[foldStatus(c.Status)] = i
	}
	for _, iss := range issues {
		i, ok := index[foldStatus(iss.Status)]
		if !ok {
			continue
		}
		groups[i].Issues = append(groups[i].Issues, iss)
	}
	for i := range groups {
		list := groups[i].Issues
		sort.SliceStable(list, func(a, b int) bool {
			return list[a].CreatedAt.After(list[b].CreatedAt)
		})
	}
	return groups
}

// FinalStatus returns the status of the board's last column, the one that
// counts as "done" for sprint completion reporting. Falls back to "done"
// when the board has no columns.
func FinalStatus(cols []models.BoardColumn) string {
	if len(cols) == 0 {
		return "done"
	}
	return cols[len(cols)-1].Status
}

// SameStatus reports whether two status labels fold to the same column,
// using the same comparison Group uses.
func SameStatus(a, b string) bool {
	return foldStatus(a) == foldStatus(b)
}

// foldStatus reduces a status label to its alphanumeric core for grouping.
func foldStatus(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}
