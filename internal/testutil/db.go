package testutil

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/ahc-eng/payflow-api/internal/domain"
)

// OpenTestDB opens a sqlite database migrated with the full domain schema.
// The file lives in the test's temp dir so every connection in the pool sees
// the same database; a plain :memory: DSN would give each connection its own
// empty one.
func OpenTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "payflow_test.db")), &gorm.Config{
		Logger:  logger.Default.LogMode(logger.Silent),
		NowFunc: func() time.Time { return time.Now().UTC() },
	})
	require.NoError(t, err, "failed to open test database")

	err = db.AutoMigrate(
		&domain.Project{},
		&domain.User{},
		&domain.ProjectAssignment{},
		&domain.Supplier{},
		&domain.PurchaseOrder{},
		&domain.PurchaseOrderDecision{},
		&domain.PaymentRequest{},
		&domain.PaymentApproval{},
		&domain.PaymentFinanceAdjustment{},
		&domain.PaymentAttachment{},
		&domain.PaymentNotificationNote{},
		&domain.Notification{},
		&domain.SavedView{},
	)
	require.NoError(t, err, "failed to migrate test schema")

	return db
}

// CreateProject inserts a project with the given name.
func CreateProject(t *testing.T, db *gorm.DB, name string) *domain.Project {
	t.Helper()
	project := &domain.Project{
		BaseModel: domain.BaseModel{ID: uuid.New()},
		Name:      name,
		Code:      uuid.NewString(),
	}
	require.NoError(t, db.Create(project).Error)
	return project
}

// CreateUser inserts an active user with the given role.
func CreateUser(t *testing.T, db *gorm.DB, name string, role domain.RoleName) *domain.User {
	t.Helper()
	user := &domain.User{
		BaseModel: domain.BaseModel{ID: uuid.New()},
		FullName:  name,
		Email:     uuid.NewString() + "@example.com",
		Role:      role,
		IsActive:  true,
	}
	require.NoError(t, user.SetPassword("test-password"))
	require.NoError(t, db.Create(user).Error)
	return user
}

// AssignProject links a user to a project with an optional scoped role.
func AssignProject(t *testing.T, db *gorm.DB, user *domain.User, project *domain.Project, role *domain.RoleName) {
	t.Helper()
	assignment := &domain.ProjectAssignment{
		ID:        uuid.New(),
		UserID:    user.ID,
		ProjectID: project.ID,
		Role:      role,
	}
	require.NoError(t, db.Create(assignment).Error)
}

// CreateSupplier inserts a supplier.
func CreateSupplier(t *testing.T, db *gorm.DB, name string) *domain.Supplier {
	t.Helper()
	supplier := &domain.Supplier{
		BaseModel:    domain.BaseModel{ID: uuid.New()},
		Name:         name,
		SupplierType: domain.DefaultSupplierType,
	}
	require.NoError(t, db.Create(supplier).Error)
	return supplier
}

// CreatePayment inserts a payment request in the given status.
func CreatePayment(t *testing.T, db *gorm.DB, project *domain.Project, supplier *domain.Supplier, creator *domain.User, status domain.PaymentStatus, amount string) *domain.PaymentRequest {
	t.Helper()
	value, err := decimal.NewFromString(amount)
	require.NoError(t, err)

	payment := &domain.PaymentRequest{
		BaseModel:   domain.BaseModel{ID: uuid.New()},
		ProjectID:   project.ID,
		SupplierID:  supplier.ID,
		RequestType: domain.RequestTypeContractor,
		Amount:      value,
		Status:      status,
	}
	if creator != nil {
		payment.CreatedBy = &creator.ID
	}
	require.NoError(t, db.Create(payment).Error)
	return payment
}

// CreatePurchaseOrder inserts a purchase order with recalculated remaining.
func CreatePurchaseOrder(t *testing.T, db *gorm.DB, project *domain.Project, supplier *domain.Supplier, creator *domain.User, boNumber, total string) *domain.PurchaseOrder {
	t.Helper()
	totalAmount, err := decimal.NewFromString(total)
	require.NoError(t, err)

	po := &domain.PurchaseOrder{
		BaseModel:    domain.BaseModel{ID: uuid.New()},
		BONumber:     boNumber,
		ProjectID:    project.ID,
		SupplierID:   supplier.ID,
		SupplierName: supplier.Name,
		TotalAmount:  totalAmount,
		Status:       domain.POStatusDraft,
		CreatedByID:  creator.ID,
	}
	po.RecalculateRemaining()
	require.NoError(t, db.Create(po).Error)
	return po
}
