package repository

import "time"

// OrderListFilter 查询订单列表的过滤条件
type OrderListFilter struct {
	Page            int
	PageSize        int
	BillingRecordID uint
	IsLocked        *bool
	CreatedFrom     *time.Time
	CreatedTo       *time.Time
}

// RenewalCandidateFilter 自动续费候选槽位过滤条件
type RenewalCandidateFilter struct {
	SiteID     uint
	EndBefore  time.Time // end_date < EndBefore
	EndAfter   time.Time // end_date > EndAfter
	ExcludeIDs []uint    // 近期已续费的槽位
}
