package postgres

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/zahid-mohammadi/pivotalb2b-corp-sub000/internal/campaign"
	"github.com/zahid-mohammadi/pivotalb2b-corp-sub000/internal/domain"
)

func setupTestDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	return db, mock, func() { db.Close() }
}

func TestDealRepoGet(t *testing.T) {
	db, mock, cleanup := setupTestDB(t)
	defer cleanup()

	now := time.Now()
	mock.ExpectQuery("SELECT (.+) FROM crm_deals").
		WithArgs(int64(7)).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "title", "full_name", "company", "email", "phone",
			"stage_id", "value", "source", "owner_id", "created_at", "updated_at",
		}).AddRow(7, "Initech renewal", "Carol", "Initech", "carol@initech.example", "",
			2, 8000.0, "referral", "user-1", now, now))

	deal, err := NewDealRepo(db).Get(context.Background(), 7)
	if err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
	if deal.FullName != "Carol" || deal.StageID != 2 || deal.Value != 8000 {
		t.Errorf("deal = %+v", deal)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestDealRepoGetMissingReturnsNil(t *testing.T) {
	db, mock, cleanup := setupTestDB(t)
	defer cleanup()

	mock.ExpectQuery("SELECT (.+) FROM crm_deals").
		WithArgs(int64(404)).
		WillReturnError(sql.ErrNoRows)

	deal, err := NewDealRepo(db).Get(context.Background(), 404)
	if err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
	if deal != nil {
		t.Errorf("expected nil for a missing deal, got %+v", deal)
	}
}

func TestDealRepoUpdateStageMissing(t *testing.T) {
	db, mock, cleanup := setupTestDB(t)
	defer cleanup()

	mock.ExpectExec("UPDATE crm_deals SET stage_id").
		WithArgs(int64(404), int64(5)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	if err := NewDealRepo(db).UpdateStage(context.Background(), 404, 5); err == nil {
		t.Fatal("expected an error when no row was updated")
	}
}

func TestRuleRepoListDecodesActions(t *testing.T) {
	db, mock, cleanup := setupTestDB(t)
	defer cleanup()

	now := time.Now()
	actions := `[{"type":"move_deal","config":{"stage_id":5}},{"type":"create_activity","config":{"content":"hot lead"}}]`
	conditions := `{"min_deal_value":10000}`
	mock.ExpectQuery("SELECT (.+) FROM crm_automation_rules").
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "name", "trigger", "conditions", "actions", "is_active", "created_at", "updated_at",
		}).
			AddRow(1, "hot lead flow", "deal_value_changed", []byte(conditions), []byte(actions), true, now, now).
			AddRow(2, "plain rule", "deal_created", nil, []byte(`[]`), false, now, now))

	rules, err := NewRuleRepo(db).List(context.Background())
	if err != nil {
		t.Fatalf("List returned error: %v", err)
	}
	if len(rules) != 2 {
		t.Fatalf("got %d rules", len(rules))
	}

	r := rules[0]
	if r.Conditions == nil || r.Conditions.MinDealValue == nil || *r.Conditions.MinDealValue != 10000 {
		t.Errorf("conditions = %+v", r.Conditions)
	}
	if len(r.Actions) != 2 {
		t.Fatalf("got %d actions", len(r.Actions))
	}
	if r.Actions[0].Type != domain.ActionMoveDeal || r.Actions[0].MoveDeal == nil || r.Actions[0].MoveDeal.StageID != 5 {
		t.Errorf("action 0 = %+v", r.Actions[0])
	}
	if r.Actions[1].CreateActivity == nil || r.Actions[1].CreateActivity.Content != "hot lead" {
		t.Errorf("action 1 = %+v", r.Actions[1])
	}
	if rules[1].Conditions != nil {
		t.Error("nil conditions column must decode to a nil block")
	}
}

func TestCampaignRepoGetDecodesFilters(t *testing.T) {
	db, mock, cleanup := setupTestDB(t)
	defer cleanup()

	now := time.Now()
	filters := `{"stage_ids":[2,3],"min_deal_value":5000}`
	mock.ExpectQuery("SELECT (.+) FROM crm_campaigns").
		WithArgs("camp-1").
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "name", "subject", "content", "subject_b", "content_b", "segment_filters",
			"from_name", "from_email", "status", "sent_at", "created_by", "created_at", "updated_at",
		}).AddRow("camp-1", "Q3 Outreach", "Hi {{contact_name}}", "<p>hi</p>", nil, nil, []byte(filters),
			"Sales", "sales@corp.example", "draft", nil, "user-1", now, now))

	c, err := NewCampaignRepo(db).Get(context.Background(), "camp-1")
	if err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
	if c.SegmentFilters == nil || len(c.SegmentFilters.StageIDs) != 2 {
		t.Errorf("filters = %+v", c.SegmentFilters)
	}
	if c.HasVariantB() {
		t.Error("campaign without B columns must not report a variant")
	}
}

func TestCampaignRepoGetNotFound(t *testing.T) {
	db, mock, cleanup := setupTestDB(t)
	defer cleanup()

	mock.ExpectQuery("SELECT (.+) FROM crm_campaigns").
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	if _, err := NewCampaignRepo(db).Get(context.Background(), "missing"); !errors.Is(err, campaign.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestCampaignRepoUpdateStatus(t *testing.T) {
	db, mock, cleanup := setupTestDB(t)
	defer cleanup()

	now := time.Now()
	mock.ExpectExec("UPDATE crm_campaigns").
		WithArgs("camp-1", domain.CampaignSent, &now).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := NewCampaignRepo(db).UpdateStatus(context.Background(), "camp-1", domain.CampaignSent, &now); err != nil {
		t.Fatalf("UpdateStatus returned error: %v", err)
	}
}

func TestSendRepoCreateAndStamp(t *testing.T) {
	db, mock, cleanup := setupTestDB(t)
	defer cleanup()

	now := time.Now()
	mock.ExpectQuery("INSERT INTO crm_campaign_sends").
		WithArgs("send-1", "camp-1", int64(7), "carol@initech.example", "A").
		WillReturnRows(sqlmock.NewRows([]string{"created_at"}).AddRow(now))
	mock.ExpectExec("UPDATE crm_campaign_sends SET bounced_at").
		WithArgs("send-1", now).
		WillReturnResult(sqlmock.NewResult(0, 1))

	repo := NewSendRepo(db)
	send := &domain.CampaignSend{
		ID: "send-1", CampaignID: "camp-1", DealID: 7,
		Email: "carol@initech.example", VariantType: "A",
	}
	if err := repo.Create(context.Background(), send); err != nil {
		t.Fatalf("Create returned error: %v", err)
	}
	if send.CreatedAt.IsZero() {
		t.Error("Create should backfill created_at")
	}
	if err := repo.MarkBounced(context.Background(), "send-1", now); err != nil {
		t.Fatalf("MarkBounced returned error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestConnectionRepoMissingReturnsNil(t *testing.T) {
	db, mock, cleanup := setupTestDB(t)
	defer cleanup()

	mock.ExpectQuery("SELECT (.+) FROM crm_mailbox_connections").
		WithArgs("user-x").
		WillReturnError(sql.ErrNoRows)

	conn, err := NewConnectionRepo(db).GetConnection(context.Background(), "user-x")
	if err != nil {
		t.Fatalf("GetConnection returned error: %v", err)
	}
	if conn != nil {
		t.Errorf("expected nil connection, got %+v", conn)
	}
}

func TestConnectionRepoUpdateTokens(t *testing.T) {
	db, mock, cleanup := setupTestDB(t)
	defer cleanup()

	expiry := time.Now().Add(time.Hour)
	mock.ExpectExec("UPDATE crm_mailbox_connections").
		WithArgs("user-1", "new-access", "new-refresh", expiry).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := NewConnectionRepo(db).UpdateConnectionTokens(context.Background(), "user-1", "new-access", "new-refresh", expiry); err != nil {
		t.Fatalf("UpdateConnectionTokens returned error: %v", err)
	}
}

func TestActivityRepoCreateAndList(t *testing.T) {
	db, mock, cleanup := setupTestDB(t)
	defer cleanup()

	now := time.Now()
	mock.ExpectQuery("INSERT INTO crm_activities").
		WithArgs(int64(7), domain.ActivityNote, "queued", "user-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow(42, now))
	mock.ExpectQuery("SELECT (.+) FROM crm_activities").
		WithArgs(int64(7)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "deal_id", "type", "content", "user_id", "created_at"}).
			AddRow(42, 7, "note", "queued", "user-1", now))

	repo := NewActivityRepo(db)
	a := &domain.LeadActivity{DealID: 7, Type: domain.ActivityNote, Content: "queued", UserID: "user-1"}
	if err := repo.Create(context.Background(), a); err != nil {
		t.Fatalf("Create returned error: %v", err)
	}
	if a.ID != 42 {
		t.Errorf("activity ID = %d, want backfilled 42", a.ID)
	}

	list, err := repo.ListByDeal(context.Background(), 7)
	if err != nil {
		t.Fatalf("ListByDeal returned error: %v", err)
	}
	if len(list) != 1 || list[0].Content != "queued" {
		t.Errorf("list = %+v", list)
	}
}
