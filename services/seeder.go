package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/voicevibe/backend/models"
	"github.com/voicevibe/backend/repository"
	"golang.org/x/crypto/bcrypt"
)

const (
	demoEmail    = "demo@voicevibe.app"
	demoPassword = "password"
)

// DatabaseSeeder loads the reference data the app needs on a fresh database.
type DatabaseSeeder struct {
	repo *repository.GORMRepository
}

func NewDatabaseSeeder(repo *repository.GORMRepository) *DatabaseSeeder {
	return &DatabaseSeeder{repo: repo}
}

type seedSet struct {
	name string
	run  func(ctx context.Context, tx *repository.GORMRepository) error
}

// SeedDatabase applies each seed set once. A set and its seed_markers row commit together.
func (s *DatabaseSeeder) SeedDatabase(ctx context.Context) error {
	sets := []seedSet{
		{"demo_user", s.seedDemoUser},
		{"badges", seedRows(defaultBadges(), "code")},
		{"milestones", seedRows(defaultMilestones(), "code")},
		{"quest_templates", seedRows(defaultQuestTemplates(), "id")},
		{"rewards", seedRows(defaultRewards(), "id")},
		{"cultural_scenarios", seedRows(defaultScenarios(), "id")},
		{"language_mappings", seedRows(defaultMappings(), "id")},
		{"feedback_templates", seedRows(defaultFeedbackTemplates(), "id")},
	}
	for _, set := range sets {
		done, err := s.repo.HasSeedMarker(ctx, set.name)
		if err != nil {
			return fmt.Errorf("failed to check seed marker %s: %w", set.name, err)
		}
		if done {
			slog.Debug("Seed set already applied, skipping", "set", set.name)
			continue
		}
		err = s.repo.Transaction(ctx, func(tx *repository.GORMRepository) error {
			if err := set.run(ctx, tx); err != nil {
				return err
			}
			return tx.CreateSeedMarker(ctx, set.name)
		})
		if err != nil {
			return fmt.Errorf("failed to seed %s: %w", set.name, err)
		}
		slog.Info("Seed set applied", "set", set.name)
	}

	if n, err := s.repo.RotateDailyQuests(ctx, dateOf(time.Now())); err != nil {
		slog.Error("Failed to create today's quests", "error", err)
	} else if n > 0 {
		slog.Info("Daily quests created", "count", n)
	}
	return nil
}

func (s *DatabaseSeeder) seedDemoUser(ctx context.Context, tx *repository.GORMRepository) error {
	existing, err := tx.GetUserByEmail(ctx, demoEmail)
	if err != nil {
		return err
	}
	if existing != nil {
		return nil
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(demoPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}
	username := "demo"
	user := &models.User{
		Email:    demoEmail,
		Username: &username,
		Password: string(hashed),
		FullName: "Demo Learner",
		Role:     models.RoleUser,
		IsActive: true,
	}
	return tx.CreateUserWithDefaults(ctx, user)
}

func seedRows[T any](rows []T, conflict string) func(context.Context, *repository.GORMRepository) error {
	return func(ctx context.Context, tx *repository.GORMRepository) error {
		for i := range rows {
			if err := tx.CreateIfAbsent(ctx, &rows[i], conflict); err != nil {
				return err
			}
		}
		return nil
	}
}

func defaultBadges() []models.Badge {
	return []models.Badge{
		{Code: "level_5", Name: "Pelajar Muda", Description: "Reach level 5", Category: "milestone", BatikPattern: "kawung", Tier: 1, PointsValue: 50, RequirementType: models.RequirementLevel, RequirementValue: 5},
		{Code: "level_10", Name: "Pelajar Tekun", Description: "Reach level 10", Category: "milestone", BatikPattern: "parang", Tier: 2, PointsValue: 100, RequirementType: models.RequirementLevel, RequirementValue: 10},
		{Code: "level_25", Name: "Cendekia", Description: "Reach level 25", Category: "milestone", BatikPattern: "mega_mendung", Tier: 3, PointsValue: 250, RequirementType: models.RequirementLevel, RequirementValue: 25},
		{Code: "level_50", Name: "Guru Bahasa", Description: "Reach level 50", Category: "milestone", BatikPattern: "sido_mukti", Tier: 4, PointsValue: 500, RequirementType: models.RequirementLevel, RequirementValue: 50},
		{Code: "streak_3", Name: "Semangat Tiga Hari", Description: "Practice three days in a row", Category: "streak", BatikPattern: "kawung", Tier: 1, PointsValue: 30, RequirementType: models.RequirementStreak, RequirementValue: 3},
		{Code: "streak_7", Name: "Seminggu Penuh", Description: "Practice seven days in a row", Category: "streak", BatikPattern: "truntum", Tier: 2, PointsValue: 70, RequirementType: models.RequirementStreak, RequirementValue: 7},
		{Code: "streak_30", Name: "Sebulan Konsisten", Description: "Practice thirty days in a row", Category: "streak", BatikPattern: "parang", Tier: 3, PointsValue: 300, RequirementType: models.RequirementStreak, RequirementValue: 30},
		{Code: "streak_100", Name: "Tak Tergoyahkan", Description: "Practice one hundred days in a row", Category: "streak", BatikPattern: "sido_mukti", Tier: 4, PointsValue: 1000, RequirementType: models.RequirementStreak, RequirementValue: 100},
	}
}

func defaultMilestones() []models.Milestone {
	return []models.Milestone{
		{Code: "first_module", Title: "First Steps", Description: "Complete your first module", MilestoneType: models.MilestoneModulesCompleted, Threshold: 1, Points: 25},
		{Code: "ten_modules", Title: "Building Momentum", Description: "Complete ten modules", MilestoneType: models.MilestoneModulesCompleted, Threshold: 10, Points: 100},
		{Code: "fifty_modules", Title: "Dedicated Learner", Description: "Complete fifty modules", MilestoneType: models.MilestoneModulesCompleted, Threshold: 50, Points: 400},
		{Code: "first_path", Title: "Path Finisher", Description: "Complete a learning path", MilestoneType: models.MilestonePathCompleted, Threshold: 0, Points: 200},
		{Code: "score_80", Title: "Clear Speaker", Description: "Score 80 or more on an activity", MilestoneType: models.MilestoneScoreReached, Threshold: 80, Points: 50},
		{Code: "score_95", Title: "Near Native", Description: "Score 95 or more on an activity", MilestoneType: models.MilestoneScoreReached, Threshold: 95, Points: 150},
	}
}

func defaultQuestTemplates() []models.DailyQuest {
	today := dateOf(time.Now())
	quest := func(title, desc, questType string, target, xp int) models.DailyQuest {
		return models.DailyQuest{
			Title:            title,
			Description:      desc,
			QuestType:        questType,
			TargetValue:      target,
			ExperiencePoints: xp,
			QuestDate:        today,
			IsTemplate:       true,
		}
	}
	return []models.DailyQuest{
		quest("Daily Practice", "Complete one practice session", models.QuestCompleteSessions, 1, 25),
		quest("Speaking Marathon", "Complete three practice sessions", models.QuestCompleteSessions, 3, 60),
		quest("Ten Minute Talk", "Practice speaking for ten minutes", models.QuestPracticeMinutes, 10, 40),
		quest("Point Collector", "Earn 100 points today", models.QuestEarnPoints, 100, 30),
	}
}

func defaultRewards() []models.Reward {
	return []models.Reward{
		{Name: "Kawung Avatar Frame", Description: "A batik kawung frame for your avatar", RewardType: "avatar_frame", PointCost: 200, LevelRequirement: 1, IsActive: true},
		{Name: "Parang Avatar Frame", Description: "A batik parang frame for your avatar", RewardType: "avatar_frame", PointCost: 500, LevelRequirement: 5, IsActive: true},
		{Name: "Semar Title", Description: "Display the Semar title on your profile", RewardType: "title", PointCost: 300, LevelRequirement: 3, IsActive: true},
		{Name: "Arjuna Title", Description: "Display the Arjuna title on your profile", RewardType: "title", PointCost: 800, LevelRequirement: 10, IsActive: true},
		{Name: "Gamelan Theme", Description: "A gamelan inspired app theme", RewardType: "theme", PointCost: 1000, LevelRequirement: 8, IsLimited: true, StockRemaining: 100, IsActive: true},
		{Name: "Streak Freeze", Description: "Protect your streak for one missed day", RewardType: "power_up", PointCost: 150, LevelRequirement: 1, IsActive: true},
	}
}

func defaultScenarios() []models.CulturalScenario {
	return []models.CulturalScenario{
		{
			Title:                 "Job Interview at a Jakarta Company",
			TitleIndonesian:       "Wawancara Kerja di Perusahaan Jakarta",
			Description:           "Introduce yourself and answer questions from a senior manager.",
			DescriptionIndonesian: "Perkenalkan diri dan jawab pertanyaan dari manajer senior.",
			ContextType:           "formal_business",
			FormalityLevel:        "formal",
			InvolvesHierarchy:     true,
			InvolvesFaceSaving:    true,
			RelevantRegions:       []string{"jakarta", "west_java"},
			ExamplePhrases:        []string{"Good morning, Sir.", "Thank you for the opportunity."},
			CulturalNotes:         map[string]any{"greeting": "Address interviewers as Bapak or Ibu"},
			DifficultyLevel:       3,
			IsActive:              true,
		},
		{
			Title:                 "Bargaining at a Traditional Market",
			TitleIndonesian:       "Menawar di Pasar Tradisional",
			Description:           "Ask for prices and negotiate with a seller.",
			DescriptionIndonesian: "Tanyakan harga dan tawar dengan penjual.",
			ContextType:           "marketplace",
			FormalityLevel:        "casual",
			RelevantRegions:       []string{},
			ExamplePhrases:        []string{"How much is this?", "Can you lower the price a little?"},
			CulturalNotes:         map[string]any{"tone": "Friendly bargaining is expected"},
			DifficultyLevel:       1,
			IsActive:              true,
		},
		{
			Title:                 "Asking a Lecturer for Guidance",
			TitleIndonesian:       "Meminta Bimbingan Dosen",
			Description:           "Request feedback on your thesis from a professor.",
			DescriptionIndonesian: "Minta masukan tentang skripsi dari dosen.",
			ContextType:           "academic",
			FormalityLevel:        "formal",
			InvolvesHierarchy:     true,
			RelevantRegions:       []string{},
			ExamplePhrases:        []string{"Excuse me, Professor, may I ask for your advice?"},
			CulturalNotes:         map[string]any{},
			DifficultyLevel:       2,
			IsActive:              true,
		},
		{
			Title:                 "Arisan with Neighbours",
			TitleIndonesian:       "Arisan dengan Tetangga",
			Description:           "Chat with neighbours at a monthly social gathering.",
			DescriptionIndonesian: "Mengobrol dengan tetangga di arisan bulanan.",
			ContextType:           "social_casual",
			FormalityLevel:        "casual",
			InvolvesGroupDynamics: true,
			RelevantRegions:       []string{},
			ExamplePhrases:        []string{"How is your family?", "It's nice to see everyone again."},
			CulturalNotes:         map[string]any{"small_talk": "Asking about family is polite"},
			DifficultyLevel:       1,
			IsActive:              true,
		},
		{
			Title:                 "Guiding Tourists at a Balinese Temple",
			TitleIndonesian:       "Memandu Turis di Pura Bali",
			Description:           "Explain temple etiquette to visitors.",
			DescriptionIndonesian: "Jelaskan tata krama pura kepada pengunjung.",
			ContextType:           "religious",
			FormalityLevel:        "neutral",
			InvolvesReligious:     true,
			RelevantRegions:       []string{"bali"},
			ExamplePhrases:        []string{"Please wear a sarong before entering."},
			CulturalNotes:         map[string]any{"dress": "Sarong and sash are required"},
			DifficultyLevel:       2,
			IsActive:              true,
		},
		{
			Title:                 "Lebaran Family Visit",
			TitleIndonesian:       "Silaturahmi Lebaran",
			Description:           "Greet elders and relatives during Eid.",
			DescriptionIndonesian: "Menyapa orang tua dan kerabat saat Lebaran.",
			ContextType:           "family",
			FormalityLevel:        "polite",
			InvolvesHierarchy:     true,
			InvolvesReligious:     true,
			InvolvesGroupDynamics: true,
			RelevantRegions:       []string{},
			ExamplePhrases:        []string{"Happy Eid, please forgive my mistakes."},
			CulturalNotes:         map[string]any{"custom": "Younger relatives greet elders first"},
			DifficultyLevel:       2,
			IsActive:              true,
		},
		{
			Title:                 "Renewing a Document at a Government Office",
			TitleIndonesian:       "Memperpanjang Dokumen di Kantor Pemerintah",
			Description:           "Explain what you need to an officer and follow the procedure.",
			DescriptionIndonesian: "Jelaskan kebutuhan kepada petugas dan ikuti prosedurnya.",
			ContextType:           "government",
			FormalityLevel:        "formal",
			InvolvesHierarchy:     true,
			RelevantRegions:       []string{},
			ExamplePhrases:        []string{"I would like to renew my passport, please."},
			CulturalNotes:         map[string]any{},
			DifficultyLevel:       3,
			IsActive:              true,
		},
		{
			Title:                 "Describing Symptoms to a Doctor",
			TitleIndonesian:       "Menjelaskan Gejala kepada Dokter",
			Description:           "Describe how you feel and understand the advice.",
			DescriptionIndonesian: "Jelaskan keluhan dan pahami saran dokter.",
			ContextType:           "healthcare",
			FormalityLevel:        "polite",
			InvolvesFaceSaving:    true,
			RelevantRegions:       []string{},
			ExamplePhrases:        []string{"I have had a headache since yesterday."},
			CulturalNotes:         map[string]any{},
			DifficultyLevel:       4,
			IsActive:              true,
		},
	}
}

func defaultMappings() []models.IndonesianEnglishMapping {
	return []models.IndonesianEnglishMapping{
		{
			IndonesianPattern:     "Saya sudah makan kemarin",
			EnglishEquivalent:     "I ate yesterday",
			InterferenceType:      "grammar",
			CommonError:           "I already eat",
			CorrectForm:           "I have already eaten",
			Explanation:           "Indonesian marks time with words like sudah, English changes the verb form.",
			ExplanationIndonesian: "Bahasa Indonesia memakai kata keterangan waktu, bahasa Inggris mengubah bentuk kata kerja.",
			DifficultyLevel:       2,
			FrequencyScore:        0.9,
			TeachingTips:          []string{"Practice past tense verbs with time markers"},
			PracticeExercises:     []string{"Yesterday I ___ (go) to the market."},
			IsActive:              true,
		},
		{
			IndonesianPattern:     "Dia (he/she)",
			EnglishEquivalent:     "he / she",
			InterferenceType:      "grammar",
			CommonError:           "she is my brother",
			CorrectForm:           "he is my brother",
			Explanation:           "Indonesian dia has no gender, English pronouns do.",
			ExplanationIndonesian: "Kata dia tidak bergender, kata ganti bahasa Inggris bergender.",
			DifficultyLevel:       1,
			FrequencyScore:        0.85,
			TeachingTips:          []string{"Pair pronouns with family members"},
			PracticeExercises:     []string{"My sister said ___ is tired."},
			IsActive:              true,
		},
		{
			IndonesianPattern:     "Buku-buku",
			EnglishEquivalent:     "books",
			InterferenceType:      "grammar",
			CommonError:           "many book",
			CorrectForm:           "many books",
			Explanation:           "English marks plurals with -s even after quantity words.",
			ExplanationIndonesian: "Bahasa Inggris tetap memakai akhiran -s setelah kata jumlah.",
			DifficultyLevel:       1,
			FrequencyScore:        0.8,
			TeachingTips:          []string{"Highlight -s endings after many and some"},
			PracticeExercises:     []string{"I have three ___ (cat)."},
			IsActive:              true,
		},
		{
			IndonesianPattern:     "Saya tidak setuju",
			EnglishEquivalent:     "I disagree",
			InterferenceType:      "pragmatic",
			CommonError:           "I am not agree",
			CorrectForm:           "I do not agree",
			Explanation:           "English negates verbs with do not, not with am not.",
			ExplanationIndonesian: "Bahasa Inggris memakai do not untuk menyangkal kata kerja.",
			DifficultyLevel:       2,
			FrequencyScore:        0.75,
			TeachingTips:          []string{"Drill do/does not with common verbs"},
			PracticeExercises:     []string{"She ___ like coffee."},
			IsActive:              true,
		},
		{
			IndonesianPattern:     "Bunyi th",
			EnglishEquivalent:     "think",
			InterferenceType:      "pronunciation",
			CommonError:           "tink",
			CorrectForm:           "think",
			Explanation:           "Indonesian has no th sound, so learners replace it with t or d.",
			ExplanationIndonesian: "Bahasa Indonesia tidak punya bunyi th sehingga sering diganti t atau d.",
			DifficultyLevel:       3,
			FrequencyScore:        0.7,
			TeachingTips:          []string{"Place the tongue between the teeth"},
			PracticeExercises:     []string{"Three thin thieves"},
			IsActive:              true,
		},
		{
			IndonesianPattern:     "Meminjam / meminjamkan",
			EnglishEquivalent:     "borrow / lend",
			InterferenceType:      "vocabulary",
			CommonError:           "borrow me",
			CorrectForm:           "lend me",
			Explanation:           "English uses lend for giving and borrow for receiving.",
			ExplanationIndonesian: "Lend berarti meminjamkan, borrow berarti meminjam.",
			DifficultyLevel:       2,
			FrequencyScore:        0.65,
			TeachingTips:          []string{"Contrast the direction of the transfer"},
			PracticeExercises:     []string{"Can you ___ me your pen?"},
			IsActive:              true,
		},
	}
}

func defaultFeedbackTemplates() []models.CulturalFeedbackTemplate {
	return []models.CulturalFeedbackTemplate{
		{
			FeedbackType:          "encouragement",
			TemplateEnglish:       "You scored {score}. Keep practicing and you will improve by {improvement} points!",
			TemplateIndonesian:    "Nilai kamu {score}. Terus berlatih, kamu bisa naik {improvement} poin lagi!",
			TemplateMixed:         "Nilai kamu {score}. Keep practicing, semangat!",
			IsIndirect:            true,
			IncludesEncouragement: true,
			MinLevel:              1,
			MaxLevel:              10,
			IsActive:              true,
		},
		{
			FeedbackType:          "correction",
			TemplateEnglish:       "Perhaps you could try a different form here. Your score is {score}.",
			TemplateIndonesian:    "Mungkin bisa dicoba bentuk lain di sini. Nilai kamu {score}.",
			TemplateMixed:         "Mungkin you could try another form. Score kamu {score}.",
			IsIndirect:            true,
			IncludesEncouragement: true,
			MinLevel:              1,
			MaxLevel:              10,
			IsActive:              true,
		},
		{
			FeedbackType:       "praise",
			TemplateEnglish:    "Excellent work at level {level}! You scored {score}.",
			TemplateIndonesian: "Kerja bagus di level {level}! Nilai kamu {score}.",
			TemplateMixed:      "Excellent, level {level} dengan nilai {score}!",
			MinLevel:           1,
			MaxLevel:           50,
			IsActive:           true,
		},
		{
			FeedbackType:          "suggestion",
			TemplateEnglish:       "Try speaking a little slower to gain {improvement} more points.",
			TemplateIndonesian:    "Coba bicara sedikit lebih pelan untuk menambah {improvement} poin.",
			TemplateMixed:         "Coba speak a little slower, bisa tambah {improvement} poin.",
			IsIndirect:            true,
			IncludesEncouragement: true,
			MinLevel:              1,
			MaxLevel:              20,
			IsActive:              true,
		},
		{
			FeedbackType:       "cultural_note",
			TemplateEnglish:    "In English small talk, direct questions are common and polite.",
			TemplateIndonesian: "Dalam basa-basi bahasa Inggris, pertanyaan langsung itu umum dan sopan.",
			TemplateMixed:      "In English small talk, pertanyaan langsung itu normal.",
			MinLevel:           1,
			MaxLevel:           50,
			IsActive:           true,
		},
	}
}
