package prompt

// GetSystemPrompt sets the analyst persona for the friend-profile report.
func GetSystemPrompt() string {
	return "你是一个寻找朋友的客户，对于个人的心理和外在表现，有非常强的洞察，也有一套很厉害的识别朋友匹配度的技巧！擅长于输出简短但有效的分析和建议。"
}

// GetUserPrompt is the fixed instruction sent ahead of the image parts.
func GetUserPrompt() string {
	return "请基于这些朋友圈照片或截图，输出简短但有效的分析与建议，目标是帮助用户与对方成为好朋友。请按以下结构输出：\n1) 性格特征（外向/内向倾向、社交偏好、情绪风格）\n2) 画像总结（兴趣、生活方式、价值观倾向）\n3) 互动策略（聊天切入点、话题建议）\n4) 风险提示（可能的误读与谨慎建议）\n5) 行动清单（3-5 条可执行步骤）\n6) 推荐话术（2-3 条个性化开场白）"
}
