package store

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tulia-commerce/convoapi/internal/domain"
)

// SettingsStore persists the tenant_settings 1:1 row.
type SettingsStore struct {
	DB *pgxpool.Pool
}

// NewSettingsStore creates a SettingsStore.
func NewSettingsStore(db *pgxpool.Pool) *SettingsStore {
	return &SettingsStore{DB: db}
}

type credentialsRow struct {
	Telephony       []byte            `json:"telephony"`
	Ecommerce       []byte            `json:"ecommerce"`
	LLMProviders    map[string][]byte `json:"llmProviders"`
	PaymentProvider []byte            `json:"paymentProvider"`
	WebhookSecret   []byte            `json:"webhookSecret"`
}

// Get loads a tenant's settings row.
func (s *SettingsStore) Get(ctx context.Context, tenantID uuid.UUID) (*domain.TenantSettings, error) {
	settings := domain.TenantSettings{TenantID: tenantID.String()}
	var credsRaw, flagsRaw, hoursRaw, notifRaw, brandRaw, onboardRaw []byte

	err := s.DB.QueryRow(ctx, `
		SELECT store_url, credentials, feature_flags, business_hours, notifications, branding, onboarding_steps, updated_at
		FROM tenant_settings WHERE tenant_id = $1
	`, tenantID).Scan(&settings.StoreURL, &credsRaw, &flagsRaw, &hoursRaw, &notifRaw, &brandRaw, &onboardRaw, &settings.UpdatedAt)
	if err != nil {
		return nil, err
	}

	var creds credentialsRow
	if err := json.Unmarshal(credsRaw, &creds); err != nil {
		return nil, err
	}
	settings.Credentials = domain.IntegrationCredentials{
		Telephony:       domain.EncryptedCredential{Ciphertext: creds.Telephony},
		Ecommerce:       domain.EncryptedCredential{Ciphertext: creds.Ecommerce},
		PaymentProvider: domain.EncryptedCredential{Ciphertext: creds.PaymentProvider},
		WebhookSecret:   domain.EncryptedCredential{Ciphertext: creds.WebhookSecret},
	}
	if len(creds.LLMProviders) > 0 {
		settings.Credentials.LLMProviders = make(map[string]domain.EncryptedCredential, len(creds.LLMProviders))
		for k, v := range creds.LLMProviders {
			settings.Credentials.LLMProviders[k] = domain.EncryptedCredential{Ciphertext: v}
		}
	}

	if err := json.Unmarshal(flagsRaw, &settings.FeatureFlags); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(notifRaw, &settings.Notifications); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(brandRaw, &settings.Branding); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(onboardRaw, &settings.OnboardingSteps); err != nil {
		return nil, err
	}
	_ = hoursRaw // business hours editing is not yet exposed through settings; reserved column

	return &settings, nil
}

// UpdateCredential re-encrypts and stores one integration credential slot.
// Ciphertext is produced by the caller (internal/httpapi's codec); this
// store never sees cleartext.
func (s *SettingsStore) UpdateCredential(ctx context.Context, tenantID uuid.UUID, slot string, ciphertext []byte) error {
	path := "{" + slot + "}"
	_, err := s.DB.Exec(ctx, `
		UPDATE tenant_settings
		SET credentials = jsonb_set(credentials, $1, to_jsonb($2::bytea), true), updated_at = now()
		WHERE tenant_id = $3
	`, path, ciphertext, tenantID)
	return err
}

// UpdateFeatureFlags overwrites the tenant's feature-flag projection.
func (s *SettingsStore) UpdateFeatureFlags(ctx context.Context, tenantID uuid.UUID, flags domain.FeatureFlags) error {
	body, err := json.Marshal(flags)
	if err != nil {
		return err
	}
	_, err = s.DB.Exec(ctx, `UPDATE tenant_settings SET feature_flags = $1, updated_at = now() WHERE tenant_id = $2`, body, tenantID)
	return err
}

// MarkOnboardingStep flips one onboarding checklist item.
func (s *SettingsStore) MarkOnboardingStep(ctx context.Context, tenantID uuid.UUID, step string, done bool) error {
	path := "{" + step + "}"
	_, err := s.DB.Exec(ctx, `
		UPDATE tenant_settings
		SET onboarding_steps = jsonb_set(onboarding_steps, $1, to_jsonb($2::boolean), true), updated_at = now()
		WHERE tenant_id = $3
	`, path, done, tenantID)
	return err
}
