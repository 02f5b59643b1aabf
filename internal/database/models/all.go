package models

// All lists every model in migration order.
func All() []interface{} {
	return []interface{}{
		&User{},
		&Company{},
		&CategoryFolder{},
		&Category{},
		&Tag{},
		&Bookmark{},
		&QuickNote{},
		&TaskList{},
		&TodoItem{},
		&Habit{},
		&HabitCheckIn{},
		&Highlight{},
		&Comment{},
		&Media{},
		&CodeSnippet{},
		&BookmarkShare{},
		&NotificationSchedule{},
		&NotificationHistory{},
	}
}
