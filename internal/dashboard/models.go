package dashboard

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// StatusBucket is one per-status rollup line.
type StatusBucket struct {
	Status  string  `bson:"_id" json:"status"`
	Count   int64   `bson:"count" json:"count"`
	Credits int64   `bson:"credits" json:"credits"`
	AreaHa  float64 `bson:"area" json:"areaHa"`
}

// Totals is the overall rollup across all projects.
type Totals struct {
	Projects    int64   `json:"projects"`
	Credits     int64   `json:"credits"`
	AreaHa      float64 `json:"areaHa"`
	AvgAreaHa   float64 `json:"avgAreaHa"`
	AvgCredits  float64 `json:"avgCredits"`
	ActiveUsers int64   `json:"activeUsers"`
}

// TrendBucket is one time bucket of the creation trend.
type TrendBucket struct {
	Period  string  `bson:"_id" json:"period"`
	Count   int64   `bson:"count" json:"count"`
	Credits int64   `bson:"credits" json:"credits"`
	AreaHa  float64 `bson:"area" json:"areaHa"`
}

// RegionBucket is one region rollup line. Credit figures only count
// approved and verified projects.
type RegionBucket struct {
	Region   string  `bson:"_id" json:"region"`
	Count    int64   `bson:"count" json:"count"`
	Credits  int64   `bson:"credits" json:"credits"`
	AreaHa   float64 `bson:"area" json:"areaHa"`
	Approved int64   `bson:"approved" json:"approved"`
	Verified int64   `bson:"verified" json:"verified"`
	Pending  int64   `bson:"pending" json:"pending"`
}

// MethodBucket is one restoration-method distribution line.
type MethodBucket struct {
	Method string  `bson:"_id" json:"method"`
	Count  int64   `bson:"count" json:"count"`
	AreaHa float64 `bson:"area" json:"areaHa"`
}

// OrgBucket is one organization rollup line.
type OrgBucket struct {
	Organization string  `bson:"_id" json:"organization"`
	Count        int64   `bson:"count" json:"count"`
	Credits      int64   `bson:"credits" json:"credits"`
	AreaHa       float64 `bson:"area" json:"areaHa"`
}

// VintageBucket is one credits-by-vintage line.
type VintageBucket struct {
	Vintage int   `bson:"_id" json:"vintage"`
	Count   int64 `bson:"count" json:"count"`
	Credits int64 `bson:"credits" json:"credits"`
}

// Overview is the public landing rollup.
type Overview struct {
	Totals       Totals         `json:"totals"`
	ByStatus     []StatusBucket `json:"byStatus"`
	MonthlyTrend []TrendBucket  `json:"monthlyTrend"`
	TopRegions   []RegionBucket `json:"topRegions"`
	ByMethod     []MethodBucket `json:"byMethod"`
}

// CarbonStats groups credit figures across dimensions. Only approved and
// verified projects with credits carry into these buckets.
type CarbonStats struct {
	ByStatus         []StatusBucket  `json:"byStatus"`
	ByVintage        []VintageBucket `json:"byVintage"`
	ByMethod         []MethodBucket  `json:"byMethod"`
	TopOrganizations []OrgBucket     `json:"topOrganizations"`
	Total            int64           `json:"totalCredits"`
}

// ActivityItem is one entry of a user's recent activity feed.
type ActivityItem struct {
	ProjectID   primitive.ObjectID `json:"projectId"`
	ProjectName string             `json:"projectName"`
	Kind        string             `json:"kind"`
	Detail      string             `json:"detail,omitempty"`
	OccurredAt  time.Time          `json:"occurredAt"`
}

// MilestoneRef points at a milestone inside a project.
type MilestoneRef struct {
	ProjectID   primitive.ObjectID `json:"projectId"`
	ProjectName string             `json:"projectName"`
	MilestoneID primitive.ObjectID `json:"milestoneId"`
	Title       string             `json:"title"`
	Status      string             `json:"status"`
	TargetDate  *time.Time         `json:"targetDate,omitempty"`
}

// UserDashboard is the per-user home view.
type UserDashboard struct {
	ByStatus          []StatusBucket `json:"byStatus"`
	TotalCredits      int64          `json:"totalCredits"`
	TotalAreaHa       float64        `json:"totalAreaHa"`
	RecentActivity    []ActivityItem `json:"recentActivity"`
	PendingMilestones []MilestoneRef `json:"pendingMilestones"`
}

// PendingReview is one entry of the admin review queue.
type PendingReview struct {
	ProjectID    primitive.ObjectID `bson:"_id" json:"projectId"`
	Name         string             `bson:"name" json:"name"`
	Organization string             `bson:"organization" json:"organization"`
	Region       string             `bson:"region" json:"region"`
	Status       string             `bson:"status" json:"status"`
	CreatedAt    time.Time          `bson:"created_at" json:"createdAt"`
}

// AdminDashboard is the admin home view.
type AdminDashboard struct {
	PendingReviews      []PendingReview  `json:"pendingReviews"`
	UsersByRole         map[string]int64 `json:"usersByRole"`
	RecentRegistrations []RecentUser     `json:"recentRegistrations"`
	DelayedMilestones   []MilestoneRef   `json:"delayedMilestones"`
	Health              SystemHealth     `json:"health"`
}

// RecentUser is a trimmed user record for the registrations feed.
type RecentUser struct {
	ID        primitive.ObjectID `bson:"_id" json:"id"`
	FullName  string             `bson:"full_name" json:"fullName"`
	Email     string             `bson:"email" json:"email"`
	Role      string             `bson:"role" json:"role"`
	CreatedAt time.Time          `bson:"created_at" json:"createdAt"`
}

// SystemHealth carries coarse system counters.
type SystemHealth struct {
	TotalProjects int64 `json:"totalProjects"`
	TotalUsers    int64 `json:"totalUsers"`
	PendingCount  int64 `json:"pendingCount"`
	VerifiedCount int64 `json:"verifiedCount"`
}
