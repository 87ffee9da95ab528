package models

import "time"

// InputImage represents an uploaded source image.
//
// The UUID doubles as the on-disk content handle: a file named
// <uuid><original extension> exists in the image store root from the moment
// the row is created. Rows are never mutated after upload.
type InputImage struct {
	UUID             string    `gorm:"primaryKey;size:36;column:uuid" json:"uuid"`
	OriginalFilename string    `gorm:"not null;size:255;column:original_filename" json:"original_filename"`
	UploadTimestamp  time.Time `gorm:"autoCreateTime;column:upload_timestamp" json:"upload_timestamp"`
}

// TableName returns the table name for InputImage.
func (InputImage) TableName() string {
	return "input_images"
}
