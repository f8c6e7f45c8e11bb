package postgres

import (
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/ancestrio/family-archive/internal/tree"
)

const personBatchSize = 500

type treeRow struct {
	ID            int64     `gorm:"primaryKey"`
	UserID        int64     `gorm:"column:user_id"`
	Title         string    `gorm:"not null"`
	Description   *string   `gorm:"column:description"`
	GedcomPath    *string   `gorm:"column:gedcom_path"`
	IsPublic      bool      `gorm:"column:is_public;default:false"`
	ArchiveSource *string   `gorm:"column:archive_source"`
	DocumentCode  *string   `gorm:"column:document_code"`
	CreatedAt     time.Time `gorm:"column:created_at"`
	UpdatedAt     time.Time `gorm:"column:updated_at"`
}

func (treeRow) TableName() string { return "family_trees" }

type personRow struct {
	ID     int64  `gorm:"primaryKey"`
	TreeID int64  `gorm:"column:tree_id"`
	Name   string `gorm:"not null"`
}

func (personRow) TableName() string { return "people" }

type treeJoined struct {
	treeRow
	Members    int64   `gorm:"column:members"`
	OwnerName  *string `gorm:"column:owner_name"`
	OwnerEmail *string `gorm:"column:owner_email"`
}

const joinedSelect = `family_trees.*,
	(SELECT count(*) FROM people WHERE people.tree_id = family_trees.id) AS members,
	users.full_name AS owner_name,
	users.email AS owner_email`

// Repository implements tree.Repository on gorm.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) ListPublic() ([]tree.FamilyTree, error) {
	return r.list(r.db.Where("family_trees.is_public = ?", true))
}

func (r *Repository) ListByOwner(userID int64) ([]tree.FamilyTree, error) {
	return r.list(r.db.Where("family_trees.user_id = ?", userID))
}

func (r *Repository) ListAll() ([]tree.FamilyTree, error) {
	return r.list(r.db)
}

func (r *Repository) GetByID(id int64) (*tree.FamilyTree, error) {
	var row treeJoined
	err := r.db.Table("family_trees").
		Select(joinedSelect).
		Joins("LEFT JOIN users ON users.id = family_trees.user_id").
		Where("family_trees.id = ?", id).
		Take(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, tree.ErrNotFound
		}
		return nil, err
	}
	t := toDomain(row)
	return &t, nil
}

func (r *Repository) Create(t *tree.FamilyTree) error {
	row := toRow(t)
	if err := r.db.Create(&row).Error; err != nil {
		return err
	}
	t.ID = row.ID
	t.CreatedAt = row.CreatedAt
	return nil
}

func (r *Repository) Update(t *tree.FamilyTree) error {
	row := toRow(t)
	return r.db.Model(&treeRow{}).
		Where("id = ?", t.ID).
		Updates(map[string]interface{}{
			"title":          row.Title,
			"description":    row.Description,
			"gedcom_path":    row.GedcomPath,
			"is_public":      row.IsPublic,
			"archive_source": row.ArchiveSource,
			"document_code":  row.DocumentCode,
			"updated_at":     time.Now(),
		}).Error
}

// Delete removes the derived Person rows before the tree itself.
func (r *Repository) Delete(id int64) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Delete(&personRow{}, "tree_id = ?", id).Error; err != nil {
			return err
		}
		return tx.Delete(&treeRow{}, "id = ?", id).Error
	})
}

// ReplacePeople swaps the Person rows for a tree in one transaction so a
// failed rebuild never leaves a half-written roster.
func (r *Repository) ReplacePeople(treeID int64, names []string) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Delete(&personRow{}, "tree_id = ?", treeID).Error; err != nil {
			return err
		}
		if len(names) == 0 {
			return nil
		}
		rows := make([]personRow, 0, len(names))
		for _, name := range names {
			rows = append(rows, personRow{TreeID: treeID, Name: name})
		}
		return tx.CreateInBatches(rows, personBatchSize).Error
	})
}

func (r *Repository) list(tx *gorm.DB) ([]tree.FamilyTree, error) {
	var rows []treeJoined
	err := tx.Table("family_trees").
		Select(joinedSelect).
		Joins("LEFT JOIN users ON users.id = family_trees.user_id").
		Order("family_trees.created_at DESC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	trees := make([]tree.FamilyTree, 0, len(rows))
	for i := range rows {
		trees = append(trees, toDomain(rows[i]))
	}
	return trees, nil
}

func toDomain(row treeJoined) tree.FamilyTree {
	t := tree.FamilyTree{
		ID:            row.ID,
		UserID:        row.UserID,
		Title:         row.Title,
		Description:   row.Description,
		GedcomPath:    row.GedcomPath,
		IsPublic:      row.IsPublic,
		ArchiveSource: row.ArchiveSource,
		DocumentCode:  row.DocumentCode,
		Members:       row.Members,
		CreatedAt:     row.CreatedAt,
		UpdatedAt:     row.UpdatedAt,
	}
	if row.OwnerName != nil {
		t.OwnerName = *row.OwnerName
	}
	if row.OwnerEmail != nil {
		t.OwnerEmail = *row.OwnerEmail
	}
	return t
}

func toRow(t *tree.FamilyTree) treeRow {
	return treeRow{
		ID:            t.ID,
		UserID:        t.UserID,
		Title:         t.Title,
		Description:   t.Description,
		GedcomPath:    t.GedcomPath,
		IsPublic:      t.IsPublic,
		ArchiveSource: t.ArchiveSource,
		DocumentCode:  t.DocumentCode,
		CreatedAt:     t.CreatedAt,
		UpdatedAt:     t.UpdatedAt,
	}
}
