package postgres

import (
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/ancestrio/family-archive/internal/gallery"
)

type galleryRow struct {
	ID            int64     `gorm:"primaryKey"`
	Title         string    `gorm:"not null"`
	Description   *string   `gorm:"column:description"`
	ImagePath     string    `gorm:"column:image_path;not null"`
	IsPublic      bool      `gorm:"column:is_public;default:true"`
	ArchiveSource *string   `gorm:"column:archive_source"`
	DocumentCode  *string   `gorm:"column:document_code"`
	Location      *string   `gorm:"column:location"`
	Year          *string   `gorm:"column:year"`
	Photographer  *string   `gorm:"column:photographer"`
	UploadedBy    int64     `gorm:"column:uploaded_by"`
	CreatedAt     time.Time `gorm:"column:created_at"`
	UpdatedAt     time.Time `gorm:"column:updated_at"`
}

func (galleryRow) TableName() string { return "gallery_items" }

type galleryWithUploader struct {
	galleryRow
	UploaderName  *string `gorm:"column:uploader_name"`
	UploaderEmail *string `gorm:"column:uploader_email"`
}

// Repository implements gallery.Repository on gorm.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) ListPublic() ([]gallery.Item, error) {
	return r.listJoined(r.db.Where("gallery_items.is_public = ?", true))
}

func (r *Repository) ListByUploader(userID int64) ([]gallery.Item, error) {
	var rows []galleryRow
	err := r.db.Where("uploaded_by = ?", userID).
		Order("created_at DESC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	items := make([]gallery.Item, 0, len(rows))
	for i := range rows {
		items = append(items, toDomain(rows[i]))
	}
	return items, nil
}

func (r *Repository) ListAll() ([]gallery.Item, error) {
	return r.listJoined(r.db)
}

func (r *Repository) GetByID(id int64) (*gallery.Item, error) {
	var row galleryRow
	if err := r.db.Take(&row, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, gallery.ErrNotFound
		}
		return nil, err
	}
	item := toDomain(row)
	return &item, nil
}

func (r *Repository) GetByIDWithUploader(id int64) (*gallery.Item, error) {
	var row galleryWithUploader
	err := r.db.Table("gallery_items").
		Select("gallery_items.*, users.full_name AS uploader_name, users.email AS uploader_email").
		Joins("LEFT JOIN users ON users.id = gallery_items.uploaded_by").
		Where("gallery_items.id = ?", id).
		Take(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, gallery.ErrNotFound
		}
		return nil, err
	}
	item := toDomainJoined(row)
	return &item, nil
}

func (r *Repository) Create(item *gallery.Item) error {
	row := toRow(item)
	if err := r.db.Create(&row).Error; err != nil {
		return err
	}
	item.ID = row.ID
	item.CreatedAt = row.CreatedAt
	item.UpdatedAt = row.UpdatedAt
	return nil
}

func (r *Repository) Update(item *gallery.Item) error {
	row := toRow(item)
	return r.db.Model(&galleryRow{}).
		Where("id = ?", item.ID).
		Updates(map[string]interface{}{
			"title":          row.Title,
			"description":    row.Description,
			"image_path":     row.ImagePath,
			"is_public":      row.IsPublic,
			"archive_source": row.ArchiveSource,
			"document_code":  row.DocumentCode,
			"location":       row.Location,
			"year":           row.Year,
			"photographer":   row.Photographer,
			"updated_at":     time.Now(),
		}).Error
}

func (r *Repository) Delete(id int64) error {
	return r.db.Delete(&galleryRow{}, "id = ?", id).Error
}

func (r *Repository) listJoined(tx *gorm.DB) ([]gallery.Item, error) {
	var rows []galleryWithUploader
	err := tx.Table("gallery_items").
		Select("gallery_items.*, users.full_name AS uploader_name, users.email AS uploader_email").
		Joins("LEFT JOIN users ON users.id = gallery_items.uploaded_by").
		Order("gallery_items.created_at DESC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	items := make([]gallery.Item, 0, len(rows))
	for i := range rows {
		items = append(items, toDomainJoined(rows[i]))
	}
	return items, nil
}

func toDomain(row galleryRow) gallery.Item {
	return gallery.Item{
		ID:            row.ID,
		Title:         row.Title,
		Description:   row.Description,
		ImagePath:     row.ImagePath,
		IsPublic:      row.IsPublic,
		ArchiveSource: row.ArchiveSource,
		DocumentCode:  row.DocumentCode,
		Location:      row.Location,
		Year:          row.Year,
		Photographer:  row.Photographer,
		UploadedBy:    row.UploadedBy,
		CreatedAt:     row.CreatedAt,
		UpdatedAt:     row.UpdatedAt,
	}
}

func toDomainJoined(row galleryWithUploader) gallery.Item {
	item := toDomain(row.galleryRow)
	if row.UploaderName != nil {
		item.UploaderName = *row.UploaderName
	}
	if row.UploaderEmail != nil {
		item.UploaderEmail = *row.UploaderEmail
	}
	return item
}

func toRow(item *gallery.Item) galleryRow {
	return galleryRow{
		ID:            item.ID,
		Title:         item.Title,
		Description:   item.Description,
		ImagePath:     item.ImagePath,
		IsPublic:      item.IsPublic,
		ArchiveSource: item.ArchiveSource,
		DocumentCode:  item.DocumentCode,
		Location:      item.Location,
		Year:          item.Year,
		Photographer:  item.Photographer,
		UploadedBy:    item.UploadedBy,
		CreatedAt:     item.CreatedAt,
		UpdatedAt:     item.UpdatedAt,
	}
}
