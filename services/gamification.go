package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"time"

	"github.com/voicevibe/backend/cache"
	"github.com/voicevibe/backend/models"
	"github.com/voicevibe/backend/repository"
)

const (
	leaderboardSize = 100
	showcaseSize    = 6

	PeriodWeekly  = "weekly"
	PeriodMonthly = "monthly"

	SourceQuest = "quest"
)

var streakBonusDays = map[int]bool{7: true, 14: true, 30: true, 60: true, 100: true}

// wayangTiers maps minimum levels to characters, highest first.
var wayangTiers = []struct {
	minLevel  int
	character string
}{
	{20, "Yudhistira"},
	{15, "Bima"},
	{10, "Arjuna"},
	{7, "Bagong"},
	{5, "Petruk"},
	{3, "Gareng"},
	{1, "Semar"},
}

type GamificationService struct {
	repo        *repository.GORMRepository
	leaderboard *cache.Leaderboard
}

type XPResult struct {
	PointsAdded      int    `json:"points_added"`
	CurrentLevel     int    `json:"current_level"`
	ExperiencePoints int    `json:"experience_points"`
	WayangCharacter  string `json:"wayang_character"`
	LeveledUp        bool   `json:"leveled_up"`
	NewLevel         *int   `json:"new_level,omitempty"`
}

type StreakResult struct {
	StreakDays    int  `json:"streak_days"`
	LongestStreak int  `json:"longest_streak"`
	BonusPoints   int  `json:"bonus_points"`
	Updated       bool `json:"updated"`
}

type LeaderboardEntry struct {
	Rank            int64  `json:"rank"`
	UserID          string `json:"user_id"`
	Username        string `json:"username"`
	Score           int64  `json:"score"`
	WayangCharacter string `json:"wayang_character"`
}

type ContributionResult struct {
	ContributionAdded  int  `json:"contribution_added"`
	TotalContribution  int  `json:"total_contribution"`
	ChallengeProgress  int  `json:"challenge_progress"`
	ChallengeGoal      int  `json:"challenge_goal"`
	ChallengeCompleted bool `json:"challenge_completed"`
}

type QuestView struct {
	models.DailyQuest
	Progress *models.UserQuest `json:"user_progress"`
}

// NewGamificationService builds the service. lb may be nil when Redis is not configured.
func NewGamificationService(repo *repository.GORMRepository, lb *cache.Leaderboard) *GamificationService {
	return &GamificationService{repo: repo, leaderboard: lb}
}

// LevelThreshold is the XP needed to advance past level.
func LevelThreshold(level int) int {
	return int(100 * math.Pow(float64(level+1), 1.5))
}

func WayangCharacter(level int) string {
	for _, t := range wayangTiers {
		if level >= t.minLevel {
			return t.character
		}
	}
	return "Semar"
}

// applyXP adds points to level, carrying overflow across as many levels as it covers.
func applyXP(level *models.UserLevel, points int) bool {
	start := level.CurrentLevel
	level.ExperiencePoints += points
	level.TotalPointsEarned += points
	level.PointsBalance += points
	for level.ExperiencePoints >= LevelThreshold(level.CurrentLevel) {
		level.ExperiencePoints -= LevelThreshold(level.CurrentLevel)
		level.CurrentLevel++
	}
	level.WayangCharacter = WayangCharacter(level.CurrentLevel)
	return level.CurrentLevel > start
}

func dateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// nextStreak applies the daily streak rule: same day keeps it, yesterday extends it,
// anything older restarts at 1.
func nextStreak(last *time.Time, today time.Time, streak int) (int, bool) {
	day := dateOf(today)
	if last != nil {
		prev := dateOf(*last)
		if prev.Equal(day) {
			return streak, false
		}
		if prev.AddDate(0, 0, 1).Equal(day) {
			return streak + 1, true
		}
	}
	return 1, true
}

func streakBonus(streak int) int {
	if streakBonusDays[streak] {
		return streak * 10
	}
	return 0
}

// AddXP credits points, levels the user up and refreshes leaderboards.
func (s *GamificationService) AddXP(ctx context.Context, userID string, points int, source, description string) (*XPResult, error) {
	if points <= 0 {
		return nil, invalid("Points must be positive")
	}
	var level *models.UserLevel
	var start int
	leveledUp := false
	err := s.repo.Transaction(ctx, func(tx *repository.GORMRepository) error {
		var err error
		if level, err = tx.LockUserLevel(ctx, userID); err != nil {
			return err
		}
		start = level.CurrentLevel
		leveledUp = applyXP(level, points)
		if err := tx.SaveUserLevel(ctx, level); err != nil {
			return err
		}
		return tx.CreatePointsTransaction(ctx, &models.PointsTransaction{
			UserID:      userID,
			Amount:      points,
			Source:      source,
			Description: description,
		})
	})
	if err != nil {
		return nil, fmt.Errorf("failed to add experience: %w", err)
	}

	result := &XPResult{
		PointsAdded:      points,
		CurrentLevel:     level.CurrentLevel,
		ExperiencePoints: level.ExperiencePoints,
		WayangCharacter:  level.WayangCharacter,
		LeveledUp:        leveledUp,
	}
	if leveledUp {
		result.NewLevel = &level.CurrentLevel
		slog.Info("User leveled up", "user_id", userID, "from", start, "to", level.CurrentLevel)
		s.awardBadges(ctx, userID, models.RequirementLevel, level.CurrentLevel)
	}
	s.bumpLeaderboards(ctx, userID, int64(points))
	if source != SourceQuest {
		s.AdvanceQuests(ctx, userID, models.QuestEarnPoints, points)
	}
	return result, nil
}

func (s *GamificationService) awardBadges(ctx context.Context, userID, requirement string, value int) {
	badges, err := s.repo.BadgesReached(ctx, requirement, value)
	if err != nil {
		slog.Error("Failed to load badges", "error", err, "requirement", requirement)
		return
	}
	for _, b := range badges {
		created, err := s.repo.AwardBadge(ctx, userID, b.ID)
		if err != nil {
			continue
		}
		if created {
			slog.Info("Badge awarded", "user_id", userID, "badge", b.Code)
		}
	}
}

func (s *GamificationService) bumpLeaderboards(ctx context.Context, userID string, delta int64) {
	if s.leaderboard == nil {
		return
	}
	for _, board := range periodBoards(time.Now()) {
		if err := s.leaderboard.IncrBy(ctx, board, userID, delta); err != nil {
			slog.Warn("Failed to update leaderboard", "board", board, "error", err)
		}
	}
}

// UpdateStreak applies the streak rule to the user's level row and pays milestone bonuses.
func (s *GamificationService) UpdateStreak(ctx context.Context, userID string, today time.Time) (*StreakResult, error) {
	level, _, err := s.repo.GetOrCreateUserLevel(ctx, userID)
	if err != nil {
		return nil, err
	}
	streak, updated := nextStreak(level.LastActivityDate, today, level.StreakDays)
	result := &StreakResult{StreakDays: level.StreakDays, LongestStreak: level.LongestStreak}
	if !updated {
		return result, nil
	}

	day := dateOf(today)
	level.StreakDays = streak
	level.LongestStreak = max(level.LongestStreak, streak)
	level.LastActivityDate = &day
	if err := s.repo.SaveUserLevel(ctx, level); err != nil {
		return nil, err
	}
	result = &StreakResult{StreakDays: streak, LongestStreak: level.LongestStreak, Updated: true}

	if bonus := streakBonus(streak); bonus > 0 {
		if _, err := s.AddXP(ctx, userID, bonus, "streak_bonus", fmt.Sprintf("%d day streak bonus", streak)); err != nil {
			return nil, err
		}
		result.BonusPoints = bonus
	}
	s.awardBadges(ctx, userID, models.RequirementStreak, streak)
	return result, nil
}

// periodBoards lists every board a point earned at now counts towards.
func periodBoards(now time.Time) []string {
	now = now.UTC()
	return []string{cache.WeeklyKey(now), cache.MonthlyKey(now), cache.AllTimeKey}
}

func periodStart(period string, now time.Time) (time.Time, string, error) {
	now = now.UTC()
	switch period {
	case PeriodWeekly:
		offset := (int(now.Weekday()) + 6) % 7
		return dateOf(now).AddDate(0, 0, -offset), cache.WeeklyKey(now), nil
	case PeriodMonthly:
		return time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC), cache.MonthlyKey(now), nil
	}
	return time.Time{}, "", invalid("Unknown leaderboard period: %s", period)
}

// Leaderboard returns the period's top entries, from Redis when available.
func (s *GamificationService) Leaderboard(ctx context.Context, period string, now time.Time) ([]LeaderboardEntry, error) {
	since, board, err := periodStart(period, now)
	if err != nil {
		return nil, err
	}
	var raw []cache.Entry
	if s.leaderboard != nil {
		raw, err = s.leaderboard.Top(ctx, board, leaderboardSize)
		if err != nil {
			slog.Warn("Leaderboard cache unavailable, using database", "error", err)
			raw = nil
		}
	}
	if raw == nil {
		totals, err := s.repo.SumPointsSince(ctx, since, leaderboardSize)
		if err != nil {
			return nil, err
		}
		raw = rankTotals(totals)
	}
	return s.decorate(ctx, raw)
}

func rankTotals(totals []repository.PointsTotal) []cache.Entry {
	sort.SliceStable(totals, func(i, j int) bool {
		if totals[i].Score != totals[j].Score {
			return totals[i].Score > totals[j].Score
		}
		return totals[i].UserID < totals[j].UserID
	})
	entries := make([]cache.Entry, len(totals))
	for i, t := range totals {
		entries[i] = cache.Entry{Rank: int64(i + 1), UserID: t.UserID, Score: t.Score}
	}
	return entries
}

func (s *GamificationService) decorate(ctx context.Context, raw []cache.Entry) ([]LeaderboardEntry, error) {
	ids := make([]string, len(raw))
	for i, e := range raw {
		ids[i] = e.UserID
	}
	users, err := s.repo.GetUsersByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	levels, err := s.repo.GetUserLevels(ctx, ids)
	if err != nil {
		return nil, err
	}
	names := make(map[string]string, len(users))
	for _, u := range users {
		names[u.ID] = displayName(&u)
	}
	characters := make(map[string]string, len(levels))
	for _, l := range levels {
		characters[l.UserID] = l.WayangCharacter
	}

	entries := make([]LeaderboardEntry, 0, len(raw))
	for _, e := range raw {
		character := characters[e.UserID]
		if character == "" {
			character = WayangCharacter(1)
		}
		entries = append(entries, LeaderboardEntry{
			Rank:            e.Rank,
			UserID:          e.UserID,
			Username:        names[e.UserID],
			Score:           e.Score,
			WayangCharacter: character,
		})
	}
	return entries, nil
}

func displayName(u *models.User) string {
	if u.Username != nil && *u.Username != "" {
		return *u.Username
	}
	if u.FullName != "" {
		return u.FullName
	}
	return u.Email
}

// LeaderboardRank returns the user's position for the period; unranked users get rank 0.
func (s *GamificationService) LeaderboardRank(ctx context.Context, userID, period string, now time.Time) (*LeaderboardEntry, error) {
	since, board, err := periodStart(period, now)
	if err != nil {
		return nil, err
	}
	if s.leaderboard != nil {
		e, err := s.leaderboard.Rank(ctx, board, userID)
		switch {
		case err == nil:
			return &LeaderboardEntry{Rank: e.Rank, UserID: userID, Score: e.Score}, nil
		case errors.Is(err, cache.ErrCacheMiss):
			return &LeaderboardEntry{UserID: userID}, nil
		}
		slog.Warn("Leaderboard cache unavailable, using database", "error", err)
	}
	totals, err := s.repo.SumPointsSince(ctx, since, 0)
	if err != nil {
		return nil, err
	}
	for _, e := range rankTotals(totals) {
		if e.UserID == userID {
			return &LeaderboardEntry{Rank: e.Rank, UserID: userID, Score: e.Score}, nil
		}
	}
	return &LeaderboardEntry{UserID: userID}, nil
}

// RebuildLeaderboards recomputes the current period boards from the points ledger.
func (s *GamificationService) RebuildLeaderboards(ctx context.Context, now time.Time) error {
	if s.leaderboard == nil {
		return nil
	}
	for _, period := range []string{PeriodWeekly, PeriodMonthly} {
		since, board, _ := periodStart(period, now)
		totals, err := s.repo.SumPointsSince(ctx, since, 0)
		if err != nil {
			return err
		}
		scores := make(map[string]int64, len(totals))
		for _, t := range totals {
			scores[t.UserID] = t.Score
		}
		if err := s.leaderboard.Replace(ctx, board, scores); err != nil {
			return err
		}
		slog.Info("Leaderboard rebuilt", "board", board, "entries", len(scores))
	}
	return nil
}

// Challenges

func (s *GamificationService) JoinChallenge(ctx context.Context, userID, challengeID string) (*models.ChallengeParticipation, error) {
	var joined *models.ChallengeParticipation
	err := s.repo.Transaction(ctx, func(tx *repository.GORMRepository) error {
		challenge, err := tx.LockChallenge(ctx, challengeID)
		if err != nil {
			return err
		}
		if challenge == nil || !challenge.IsActive {
			return ErrNotFound
		}
		p, err := tx.GetParticipation(ctx, challengeID, userID)
		if err != nil {
			return err
		}
		count, err := tx.CountActiveParticipants(ctx, challengeID)
		if err != nil {
			return err
		}
		if joined, err = joinParticipation(challenge, p, userID, count, time.Now()); err != nil {
			return err
		}
		return tx.SaveParticipation(ctx, joined)
	})
	if err != nil {
		return nil, err
	}
	slog.Info("Challenge joined", "user_id", userID, "challenge_id", challengeID)
	return joined, nil
}

// joinParticipation admits userID when the challenge has room, reactivating a previous row.
func joinParticipation(challenge *models.Challenge, existing *models.ChallengeParticipation, userID string, active int64, now time.Time) (*models.ChallengeParticipation, error) {
	if existing != nil && existing.IsActive {
		return nil, ErrAlreadyParticipating
	}
	if challenge.MaximumParticipants > 0 && active >= int64(challenge.MaximumParticipants) {
		return nil, ErrChallengeFull
	}
	p := existing
	if p == nil {
		p = &models.ChallengeParticipation{ChallengeID: challenge.ID, UserID: userID}
	}
	p.IsActive = true
	p.JoinedAt = now
	return p, nil
}

func (s *GamificationService) LeaveChallenge(ctx context.Context, userID, challengeID string) error {
	p, err := s.repo.GetParticipation(ctx, challengeID, userID)
	if err != nil {
		return err
	}
	if p == nil || !p.IsActive {
		return ErrNotParticipating
	}
	p.IsActive = false
	return s.repo.SaveParticipation(ctx, p)
}

// Contribute adds points to the user's contribution. Crossing the goal completes the
// challenge for every active participant; completed_at guards the one-time reward.
func (s *GamificationService) Contribute(ctx context.Context, userID, challengeID string, points int) (*ContributionResult, error) {
	if points <= 0 {
		return nil, invalid("Points must be positive")
	}
	var result ContributionResult
	var rewardees []string
	var reward int
	err := s.repo.Transaction(ctx, func(tx *repository.GORMRepository) error {
		challenge, err := tx.LockChallenge(ctx, challengeID)
		if err != nil {
			return err
		}
		if challenge == nil {
			return ErrNotFound
		}
		p, err := tx.GetParticipation(ctx, challengeID, userID)
		if err != nil {
			return err
		}
		if p == nil || !p.IsActive {
			return ErrNotParticipating
		}
		p.ContributionScore += points
		if err := tx.SaveParticipation(ctx, p); err != nil {
			return err
		}

		participants, err := tx.ListActiveParticipants(ctx, challengeID)
		if err != nil {
			return err
		}
		var completedNow bool
		result, completedNow = settleContribution(challenge, participants, time.Now())
		result.ContributionAdded = points
		result.TotalContribution = p.ContributionScore
		if !completedNow {
			return nil
		}

		if err := tx.SaveChallenge(ctx, challenge); err != nil {
			return err
		}
		for i := range participants {
			if err := tx.SaveParticipation(ctx, &participants[i]); err != nil {
				return err
			}
			rewardees = append(rewardees, participants[i].UserID)
		}
		reward = challenge.RewardPoints
		return nil
	})
	if err != nil {
		return nil, err
	}

	if len(rewardees) > 0 {
		slog.Info("Challenge completed", "challenge_id", challengeID, "participants", len(rewardees))
		for _, id := range rewardees {
			if reward <= 0 {
				break
			}
			if _, err := s.AddXP(ctx, id, reward, "challenge", "Challenge completed"); err != nil {
				slog.Error("Failed to pay challenge reward", "error", err, "user_id", id, "challenge_id", challengeID)
			}
		}
	}
	return &result, nil
}

// settleContribution totals the active contributions and completes the challenge the first
// time the goal is reached. completedNow is true only for that first crossing.
func settleContribution(challenge *models.Challenge, participants []models.ChallengeParticipation, now time.Time) (ContributionResult, bool) {
	total := 0
	for _, ap := range participants {
		total += ap.ContributionScore
	}
	result := ContributionResult{
		ChallengeProgress:  total,
		ChallengeGoal:      challenge.GoalTarget,
		ChallengeCompleted: challenge.CompletedAt != nil,
	}
	if challenge.CompletedAt != nil || total < challenge.GoalTarget {
		return result, false
	}
	challenge.CompletedAt = &now
	for i := range participants {
		participants[i].Completed = true
		participants[i].CompletedAt = &now
	}
	result.ChallengeCompleted = true
	return result, true
}

// Quests

func (s *GamificationService) DailyQuests(ctx context.Context, userID string, today time.Time) ([]QuestView, error) {
	quests, err := s.repo.ListDailyQuests(ctx, dateOf(today))
	if err != nil {
		return nil, err
	}
	ids := make([]string, len(quests))
	for i, q := range quests {
		ids[i] = q.ID
	}
	progress, err := s.repo.ListUserQuests(ctx, userID, ids)
	if err != nil {
		return nil, err
	}
	byQuest := make(map[string]*models.UserQuest, len(progress))
	for i := range progress {
		byQuest[progress[i].QuestID] = &progress[i]
	}
	views := make([]QuestView, len(quests))
	for i, q := range quests {
		views[i] = QuestView{DailyQuest: q, Progress: byQuest[q.ID]}
	}
	return views, nil
}

func (s *GamificationService) StartQuest(ctx context.Context, userID, questID string) (*models.UserQuest, bool, error) {
	quest, err := s.repo.GetQuest(ctx, questID)
	if err != nil {
		return nil, false, err
	}
	if quest == nil || !quest.IsActive {
		return nil, false, ErrNotFound
	}
	uq, err := s.repo.GetUserQuest(ctx, userID, questID)
	if err != nil {
		return nil, false, err
	}
	if uq != nil {
		return uq, false, nil
	}
	uq = &models.UserQuest{UserID: userID, QuestID: questID}
	if err := s.repo.SaveUserQuest(ctx, uq); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			uq, err = s.repo.GetUserQuest(ctx, userID, questID)
			return uq, false, err
		}
		return nil, false, err
	}
	return uq, true, nil
}

func (s *GamificationService) UpdateQuestProgress(ctx context.Context, userID, questID string, increment int) (*models.UserQuest, error) {
	if increment <= 0 {
		increment = 1
	}
	quest, err := s.repo.GetQuest(ctx, questID)
	if err != nil {
		return nil, err
	}
	if quest == nil {
		return nil, ErrNotFound
	}
	uq, err := s.repo.GetUserQuest(ctx, userID, questID)
	if err != nil {
		return nil, err
	}
	if uq == nil {
		return nil, ErrQuestNotStarted
	}
	if uq.IsCompleted {
		return nil, ErrQuestCompleted
	}
	uq.Quest = quest
	if err := s.progressQuest(ctx, uq, increment); err != nil {
		return nil, err
	}
	return uq, nil
}

func (s *GamificationService) progressQuest(ctx context.Context, uq *models.UserQuest, increment int) error {
	uq.CurrentProgress += increment
	completed := false
	if uq.CurrentProgress >= uq.Quest.TargetValue {
		now := time.Now()
		uq.CurrentProgress = uq.Quest.TargetValue
		uq.IsCompleted = true
		uq.CompletedAt = &now
		uq.PointsEarned = uq.Quest.ExperiencePoints
		completed = true
	}
	if err := s.repo.SaveUserQuest(ctx, uq); err != nil {
		return err
	}
	if completed && uq.PointsEarned > 0 {
		if _, err := s.AddXP(ctx, uq.UserID, uq.PointsEarned, SourceQuest, uq.Quest.Title); err != nil {
			return err
		}
	}
	return nil
}

// AdvanceQuests moves the user's started quests of questType forward by amount.
func (s *GamificationService) AdvanceQuests(ctx context.Context, userID, questType string, amount int) {
	open, err := s.repo.OpenQuestsOfType(ctx, userID, questType, dateOf(time.Now()))
	if err != nil {
		slog.Error("Failed to load open quests", "error", err, "user_id", userID)
		return
	}
	for i := range open {
		if open[i].Quest == nil {
			continue
		}
		if err := s.progressQuest(ctx, &open[i], amount); err != nil {
			slog.Error("Failed to advance quest", "error", err, "quest_id", open[i].QuestID)
		}
	}
}

// Purchase buys a reward with the spendable balance. Lifetime earnings are untouched.
func (s *GamificationService) Purchase(ctx context.Context, userID, rewardID string) (*models.UserReward, error) {
	var owned *models.UserReward
	err := s.repo.Transaction(ctx, func(tx *repository.GORMRepository) error {
		level, err := tx.LockUserLevel(ctx, userID)
		if err != nil {
			return err
		}
		reward, err := tx.LockReward(ctx, rewardID)
		if err != nil {
			return err
		}
		if reward == nil {
			return ErrNotFound
		}
		if err := spendOn(level, reward); err != nil {
			return err
		}
		if reward.IsLimited {
			if err := tx.SaveReward(ctx, reward); err != nil {
				return err
			}
		}
		if err := tx.SaveUserLevel(ctx, level); err != nil {
			return err
		}
		if err := tx.CreatePointsTransaction(ctx, &models.PointsTransaction{
			UserID:      userID,
			Amount:      -reward.PointCost,
			Source:      "purchase",
			Description: reward.Name,
		}); err != nil {
			return err
		}
		owned = &models.UserReward{UserID: userID, RewardID: reward.ID, AcquisitionType: "purchase"}
		if err := tx.CreateUserReward(ctx, owned); err != nil {
			return err
		}
		owned.Reward = reward
		return nil
	})
	if err != nil {
		return nil, err
	}
	slog.Info("Reward purchased", "user_id", userID, "reward_id", rewardID)
	return owned, nil
}

// spendOn checks that level can buy reward and debits the balance and stock.
func spendOn(level *models.UserLevel, reward *models.Reward) error {
	if level.PointsBalance < reward.PointCost {
		return ErrInsufficientPoints
	}
	if level.CurrentLevel < reward.LevelRequirement {
		return invalid("Requires level %d", reward.LevelRequirement)
	}
	if reward.IsLimited {
		if reward.StockRemaining <= 0 {
			return ErrOutOfStock
		}
		reward.StockRemaining--
	}
	level.PointsBalance -= reward.PointCost
	return nil
}

// Showcase returns the user's highest-tier badges.
func (s *GamificationService) Showcase(ctx context.Context, userID string) ([]models.UserBadge, error) {
	badges, err := s.repo.ListUserBadges(ctx, userID)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(badges, func(i, j int) bool {
		ti, tj := 0, 0
		if badges[i].Badge != nil {
			ti = badges[i].Badge.Tier
		}
		if badges[j].Badge != nil {
			tj = badges[j].Badge.Tier
		}
		return ti > tj
	})
	if len(badges) > showcaseSize {
		badges = badges[:showcaseSize]
	}
	return badges, nil
}
