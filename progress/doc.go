/*
Package progress 管理工作流的进度产物：output/progress/<workflow_id>/ 下的 markdown 文件。

# 约定

  - 产物只追加：同名文件一旦写入就不会被覆盖（[ErrArtifactExists]）。
  - 写入先落临时文件再原子链接到最终路径，读者不会看到半个文件。
  - 编号文件 00–08 对应专利文档的固定章节，其余阶段的上下文写入 context/<stage>.md。

[Watcher] 以轮询方式观察某个工作流目录，供命令行监视器使用。
*/
package progress
