package postgres

import (
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/ancestrio/family-archive/internal/book"
)

type bookRow struct {
	ID            int64     `gorm:"primaryKey"`
	Title         string    `gorm:"not null"`
	Author        *string   `gorm:"column:author"`
	Description   *string   `gorm:"column:description"`
	Category      *string   `gorm:"column:category"`
	ArchiveSource *string   `gorm:"column:archive_source"`
	DocumentCode  *string   `gorm:"column:document_code"`
	FilePath      string    `gorm:"column:file_path;not null"`
	CoverPath     *string   `gorm:"column:cover_path"`
	FileSize      *int64    `gorm:"column:file_size"`
	DownloadCount int64     `gorm:"column:download_count;default:0"`
	IsPublic      bool      `gorm:"column:is_public;default:true"`
	UploadedBy    int64     `gorm:"column:uploaded_by"`
	CreatedAt     time.Time `gorm:"column:created_at"`
	UpdatedAt     time.Time `gorm:"column:updated_at"`
}

func (bookRow) TableName() string { return "books" }

type bookWithUploader struct {
	bookRow
	UploaderName *string `gorm:"column:uploader_name"`
}

// Repository implements book.Repository on gorm.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) ListPublic() ([]book.Book, error) {
	var rows []bookRow
	err := r.db.Where("is_public = ?", true).
		Order("created_at DESC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return toDomainSlice(rows), nil
}

func (r *Repository) ListByUploader(userID int64) ([]book.Book, error) {
	var rows []bookRow
	err := r.db.Where("uploaded_by = ?", userID).
		Order("created_at DESC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return toDomainSlice(rows), nil
}

func (r *Repository) ListAll() ([]book.Book, error) {
	var rows []bookWithUploader
	err := r.db.Table("books").
		Select("books.*, users.full_name AS uploader_name").
		Joins("LEFT JOIN users ON users.id = books.uploaded_by").
		Order("books.created_at DESC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	result := make([]book.Book, 0, len(rows))
	for i := range rows {
		b := toDomain(rows[i].bookRow)
		if rows[i].UploaderName != nil {
			b.UploaderName = *rows[i].UploaderName
		}
		result = append(result, b)
	}
	return result, nil
}

func (r *Repository) GetByID(id int64) (*book.Book, error) {
	var row bookRow
	if err := r.db.Take(&row, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, book.ErrNotFound
		}
		return nil, err
	}
	b := toDomain(row)
	return &b, nil
}

func (r *Repository) GetByIDWithUploader(id int64) (*book.Book, error) {
	var row bookWithUploader
	err := r.db.Table("books").
		Select("books.*, users.full_name AS uploader_name").
		Joins("LEFT JOIN users ON users.id = books.uploaded_by").
		Where("books.id = ?", id).
		Take(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, book.ErrNotFound
		}
		return nil, err
	}
	b := toDomain(row.bookRow)
	if row.UploaderName != nil {
		b.UploaderName = *row.UploaderName
	}
	return &b, nil
}

func (r *Repository) Create(b *book.Book) error {
	row := toRow(b)
	if err := r.db.Create(&row).Error; err != nil {
		return err
	}
	b.ID = row.ID
	b.CreatedAt = row.CreatedAt
	return nil
}

func (r *Repository) Update(b *book.Book) error {
	row := toRow(b)
	return r.db.Model(&bookRow{}).
		Where("id = ?", b.ID).
		Updates(map[string]interface{}{
			"title":          row.Title,
			"author":         row.Author,
			"description":    row.Description,
			"category":       row.Category,
			"archive_source": row.ArchiveSource,
			"document_code":  row.DocumentCode,
			"file_path":      row.FilePath,
			"cover_path":     row.CoverPath,
			"file_size":      row.FileSize,
			"is_public":      row.IsPublic,
			"updated_at":     time.Now(),
		}).Error
}

func (r *Repository) Delete(id int64) error {
	return r.db.Delete(&bookRow{}, "id = ?", id).Error
}

// IncrementDownloads bumps the counter in SQL so concurrent downloads
// never lose an increment.
func (r *Repository) IncrementDownloads(id int64) error {
	return r.db.Model(&bookRow{}).
		Where("id = ?", id).
		UpdateColumn("download_count", gorm.Expr("download_count + 1")).Error
}

func toDomain(row bookRow) book.Book {
	return book.Book{
		ID:            row.ID,
		Title:         row.Title,
		Author:        row.Author,
		Description:   row.Description,
		Category:      row.Category,
		ArchiveSource: row.ArchiveSource,
		DocumentCode:  row.DocumentCode,
		FilePath:      row.FilePath,
		CoverPath:     row.CoverPath,
		FileSize:      row.FileSize,
		DownloadCount: row.DownloadCount,
		IsPublic:      row.IsPublic,
		UploadedBy:    row.UploadedBy,
		CreatedAt:     row.CreatedAt,
		UpdatedAt:     row.UpdatedAt,
	}
}

func toDomainSlice(rows []bookRow) []book.Book {
	result := make([]book.Book, 0, len(rows))
	for i := range rows {
		result = append(result, toDomain(rows[i]))
	}
	return result
}

func toRow(b *book.Book) bookRow {
	return bookRow{
		ID:            b.ID,
		Title:         b.Title,
		Author:        b.Author,
		Description:   b.Description,
		Category:      b.Category,
		ArchiveSource: b.ArchiveSource,
		DocumentCode:  b.DocumentCode,
		FilePath:      b.FilePath,
		CoverPath:     b.CoverPath,
		FileSize:      b.FileSize,
		DownloadCount: b.DownloadCount,
		IsPublic:      b.IsPublic,
		UploadedBy:    b.UploadedBy,
		CreatedAt:     b.CreatedAt,
		UpdatedAt:     b.UpdatedAt,
	}
}
