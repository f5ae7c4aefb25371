package migration

import (
	bookingdomain "github.com/smallbiznis/lingohub/internal/booking/domain"
	institutiondomain "github.com/smallbiznis/lingohub/internal/institution/domain"
	paymentdomain "github.com/smallbiznis/lingohub/internal/payment/domain"
	reconciliationdomain "github.com/smallbiznis/lingohub/internal/reconciliation/domain"
	settingsdomain "github.com/smallbiznis/lingohub/internal/settings/domain"
	subscriptiondomain "github.com/smallbiznis/lingohub/internal/subscription/domain"
	tierdomain "github.com/smallbiznis/lingohub/internal/tier/domain"
	"gorm.io/gorm"
)

// AutoMigrate builds the schema from the gorm models. It backs the sqlite
// dialect, where the embedded postgres migrations cannot run.
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&tierdomain.CommissionTier{},
		&tierdomain.StudentTier{},
		&institutiondomain.Institution{},
		&institutiondomain.Course{},
		&subscriptiondomain.SubscriptionLog{},
		&subscriptiondomain.BillingHistory{},
		&bookingdomain.Booking{},
		&bookingdomain.Payment{},
		&bookingdomain.Enrollment{},
		&paymentdomain.PaymentEvent{},
		&reconciliationdomain.ConsistencyViolation{},
		&settingsdomain.PlatformSetting{},
	); err != nil {
		return err
	}
	for _, holder := range []tierdomain.Audience{tierdomain.AudienceInstitution, tierdomain.AudienceStudent} {
		if err := db.Table(subscriptiondomain.TableFor(holder)).AutoMigrate(&subscriptiondomain.Subscription{}); err != nil {
			return err
		}
	}
	return nil
}
