package models

import (
	"github.com/google/uuid"
	"gorm.io/gorm"
)

func assignID(id *uuid.UUID) {
	if *id == uuid.Nil {
		*id = uuid.New()
	}
}

// BeforeCreate assigns a UUID when the caller did not provide one.
func (u *User) BeforeCreate(*gorm.DB) error {
	assignID(&u.ID)
	return nil
}

// BeforeCreate assigns a UUID when the caller did not provide one.
func (p *Plan) BeforeCreate(*gorm.DB) error {
	assignID(&p.ID)
	return nil
}

// BeforeCreate assigns a UUID when the caller did not provide one.
func (t *Team) BeforeCreate(*gorm.DB) error {
	assignID(&t.ID)
	return nil
}

// BeforeCreate assigns a UUID when the caller did not provide one.
func (c *CheckoutSession) BeforeCreate(*gorm.DB) error {
	assignID(&c.ID)
	return nil
}

// BeforeCreate assigns a UUID when the caller did not provide one.
func (l *Lead) BeforeCreate(*gorm.DB) error {
	assignID(&l.ID)
	return nil
}

// BeforeCreate assigns a UUID when the caller did not provide one.
func (c *Client) BeforeCreate(*gorm.DB) error {
	assignID(&c.ID)
	return nil
}
