package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

const (
	settingsKeyBusinessNumber = "BUSINESS_NUMBER"
	settingsKeyMarketplaceID  = "MARKETPLACE_ID"
	settingsKeyMarketplacePW  = "MARKETPLACE_PW"
	settingsKeyBrandName      = "BRAND_NAME"
)

// Settings is the operator's key-value settings file.
type Settings struct {
	BusinessNumber string `json:"business_number" validate:"required"`
	MarketplaceID  string `json:"marketplace_id" validate:"required"`
	MarketplacePW  string `json:"marketplace_pw,omitempty" validate:"required"`
	BrandName      string `json:"brand_name" validate:"required"`
}

var validate = validator.New()

// LoadSettings reads the settings file. A missing file yields empty settings.
func LoadSettings(path string) (*Settings, error) {
	values, err := godotenv.Read(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &Settings{}, nil
		}
		return nil, fmt.Errorf("read settings %s: %w", path, err)
	}
	return &Settings{
		BusinessNumber: strings.TrimSpace(values[settingsKeyBusinessNumber]),
		MarketplaceID:  strings.TrimSpace(values[settingsKeyMarketplaceID]),
		MarketplacePW:  strings.TrimSpace(values[settingsKeyMarketplacePW]),
		BrandName:      strings.TrimSpace(values[settingsKeyBrandName]),
	}, nil
}

func SaveSettings(path string, s *Settings) error {
	if err := s.Validate(); err != nil {
		return err
	}
	values := map[string]string{
		settingsKeyBusinessNumber: strings.TrimSpace(s.BusinessNumber),
		settingsKeyMarketplaceID:  strings.TrimSpace(s.MarketplaceID),
		settingsKeyMarketplacePW:  strings.TrimSpace(s.MarketplacePW),
		settingsKeyBrandName:      strings.TrimSpace(s.BrandName),
	}
	if err := godotenv.Write(values, path); err != nil {
		return fmt.Errorf("write settings %s: %w", path, err)
	}
	return nil
}

// Validate reports every missing field by name.
func (s Settings) Validate() error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	fields := make([]string, 0, len(verrs))
	for _, ve := range verrs {
		fields = append(fields, ve.Field())
	}
	return fmt.Errorf("settings incomplete: %s", strings.Join(fields, ", "))
}

// Redacted returns a copy safe to log or return over the API.
func (s Settings) Redacted() Settings {
	s.MarketplacePW = ""
	return s
}
